// Package receiptsvc renders enrollment payment receipts.
package receiptsvc

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/trezcool/academia/core"
)

func money(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("Jan 2, 2006")
}

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": money,
	"date":  date,
}).Parse(htmlTemplate))

func renderHTML(data core.ReceiptData) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, struct {
		core.ReceiptData
		AppName string
	}{
		ReceiptData: data,
		AppName:     core.Conf.AppName,
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var htmlTemplate = `
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 24px; color: #0f172a; }
    h1 { margin: 0 0 8px; }
    .meta { display: flex; justify-content: space-between; margin-bottom: 16px; }
    .card { border: 1px solid #e2e8f0; border-radius: 8px; padding: 12px; margin-bottom: 12px; }
    .row { display: flex; gap: 12px; }
    .col { flex: 1; }
    .label { font-size: 12px; color: #475569; }
    .value { font-size: 14px; margin-bottom: 4px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { padding: 8px; border-bottom: 1px solid #e2e8f0; text-align: left; }
    th { background: #f8fafc; }
    .total { text-align: right; font-weight: 700; }
    .stamp { color: #15803d; font-weight: 700; text-transform: uppercase; }
  </style>
</head>
<body>
  <div class="meta">
    <h1>{{.AppName}} - Payment Receipt</h1>
    <div style="text-align:right">
      <div class="label">Receipt No.</div>
      <div class="value">{{.Number}}</div>
      <div class="label">Issued</div>
      <div class="value">{{date .IssuedAt}}</div>
    </div>
  </div>

  <div class="card">
    <div class="row">
      <div class="col">
        <div class="label">Student</div>
        <div class="value">{{.StudentName}}</div>
        <div class="value">{{.StudentEmail}}</div>
      </div>
      <div class="col">
        <div class="label">Course</div>
        <div class="value">{{.CourseName}}</div>
        <div class="value">{{.CourseSubject}}</div>
      </div>
    </div>
  </div>

  <table>
    <thead>
      <tr>
        <th>Description</th>
        <th>Payment Verified</th>
        <th class="total">Amount</th>
      </tr>
    </thead>
    <tbody>
      <tr>
        <td>Enrollment - {{.CourseName}}</td>
        <td>{{date .VerifiedAt}}</td>
        <td class="total">{{money .Amount}}</td>
      </tr>
    </tbody>
  </table>

  <div style="display:flex; justify-content:flex-end; margin-top:12px;">
    <div class="stamp">Paid in full</div>
  </div>
</body>
</html>
`
