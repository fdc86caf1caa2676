package notifier

const emailHTMLTemplate = `<!DOCTYPE html>
<html dir="rtl" lang="he">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>עדכון טיסות</title>
  <style>
    body {
      margin: 0;
      padding: 20px;
      background-color: #f8f9fa;
      font-family: Arial, Helvetica, sans-serif;
      direction: rtl;
      color: #212529;
    }

    .container {
      max-width: 800px;
      margin: 0 auto;
      background: #ffffff;
      border-radius: 10px;
      box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1);
      overflow: hidden;
    }

    .header {
      padding: 30px 20px;
      text-align: center;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      color: #ffffff;
    }

    .header h1 { margin: 0; font-size: 28px; }
    .header p { margin: 10px 0 0 0; font-size: 16px; opacity: 0.9; }
    .content { padding: 30px; }

    .summary {
      background: #e3f2fd;
      border-right: 4px solid #2196f3;
      padding: 20px;
      margin-bottom: 25px;
      border-radius: 8px 0 0 8px;
    }

    .summary td { text-align: center; padding: 0 15px; }
    .count { font-size: 24px; font-weight: bold; }
    .label { color: #666666; font-size: 14px; }

    h2 { padding-bottom: 10px; }
    h2.new { color: #2c5aa0; border-bottom: 2px solid #2c5aa0; }
    h2.drop { color: #dc3545; border-bottom: 2px solid #dc3545; }

    .card {
      border: 1px solid #dddddd;
      border-radius: 8px;
      padding: 15px;
      margin-bottom: 15px;
      background: #f8f9fa;
    }

    .card.drop { border-color: #dc3545; background: #fff5f5; }
    .card h3 { margin: 0 0 10px 0; font-size: 18px; color: #495057; }

    .price {
      display: inline-block;
      padding: 5px 15px;
      border-radius: 20px;
      font-weight: bold;
      color: #ffffff;
      background: #28a745;
    }

    .card.drop .price { background: #dc3545; }
    .was { color: #6c757d; text-decoration: line-through; font-size: 14px; }
    .saving { margin-top: 10px; color: #155724; font-weight: bold; }
    .muted { color: #6c757d; font-size: 14px; line-height: 1.4; }
    .footer { text-align: center; color: #6c757d; font-size: 14px; border-top: 1px solid #dee2e6; padding-top: 20px; }
    .footer a { color: #667eea; text-decoration: none; font-weight: bold; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>✈️ עדכון טיסות TusTus</h1>
      <p>{{when .CheckedAt}}</p>
    </div>

    <div class="content">
      <div class="summary">
        <table>
          <tr>
            <td><div class="count">{{len .New}}</div><div class="label">טיסות חדשות</div></td>
            <td><div class="count">{{len .Changed}}</div><div class="label">ירידות מחיר</div></td>
            <td><div class="count">{{.Stats.TotalTracked}}</div><div class="label">סה"כ טיסות</div></td>
          </tr>
        </table>
      </div>

      {{if .New}}
      <h2 class="new">🆕 טיסות חדשות</h2>
      {{range .New}}
      <div class="card">
        <h3>✈️ {{.Destination}}</h3>
        <span class="price">{{price .Price}}</span>
        <div class="muted">📅 תאריכים: {{dates .Dates}}</div>
        {{if .RawText}}<div class="muted">{{snippet .RawText}}</div>{{end}}
      </div>
      {{end}}
      {{end}}

      {{if .Changed}}
      <h2 class="drop">🔥 ירידות מחיר</h2>
      {{range .Changed}}
      <div class="card drop">
        <h3>🎯 {{.Destination}}</h3>
        <div class="was">{{.PreviousPrice}}₪</div>
        <span class="price">{{.CurrentPrice}}₪</span>
        <div class="saving">💰 חיסכון: {{.Discount}}₪</div>
      </div>
      {{end}}
      {{end}}

      <div class="footer">
        {{if .SourceURL}}<p><a href="{{.SourceURL}}">🌐 בקר באתר TusTus</a></p>{{end}}
        {{if .Interval}}<p>המערכת בודקת עדכונים באופן אוטומטי כל {{minutes .Interval}} דקות</p>{{end}}
        <p>נוצר על ידי מערכת ניטור טיסות אוטומטית</p>
      </div>
    </div>
  </div>
</body>
</html>
`
