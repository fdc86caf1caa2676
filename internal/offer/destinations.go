package offer

// KnownDestinations is the built-in recognised destination list, in priority order
var KnownDestinations = []string{
	"אתונה", "בטומי", "פראג", "בודפשט", "ורשה", "קרקוב", "בוקרשט",
	"סופיה", "וינה", "רומא", "מילאנו", "ברצלונה", "מדריד", "ליסבון",
	"פריז", "לונדון", "אמסטרדם", "ברלין", "מינכן", "זלצבורג",
	"לרנקה", "פאפוס", "רודוס", "כרתים", "סלוניקי", "טביליסי",
	"ניו יורק", "בנגקוק", "דובאי", "הודו", "נפאל",
}
