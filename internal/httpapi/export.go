package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"time"

	"perfumestock/backend/internal/domain"
)

func percent(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func salesReportToCSV(report domain.SalesReport) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "key", "value", "percent"},
		{"summary", "month", report.Month, ""},
		{"summary", "generated_at", report.GeneratedAt.Format(time.RFC3339), ""},
		{"summary", "this_month_revenue", report.ThisMonthRevenue.StringFixed(2), percent(report.RevenueGrowth)},
		{"summary", "last_month_revenue", report.LastMonthRevenue.StringFixed(2), ""},
		{"summary", "this_month_volume_ml", fmt.Sprintf("%d", report.ThisMonthVolumeML), percent(report.VolumeGrowth)},
		{"summary", "last_month_volume_ml", fmt.Sprintf("%d", report.LastMonthVolumeML), ""},
		{"summary", "average_margin", "", percent(report.AverageMargin)},
	}
	for _, p := range report.TopProducts {
		rows = append(rows, []string{"top_product", p.Name, p.Revenue.StringFixed(2), percent(p.Percent)})
	}
	for _, c := range report.Categories {
		rows = append(rows, []string{"category", c.Category, c.Revenue.StringFixed(2), percent(c.Percent)})
	}
	for _, m := range report.Trend {
		rows = append(rows, []string{"trend", m.Month, m.Revenue.StringFixed(2), percent(m.Growth)})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// All user-controlled fields (perfume names, categories) are escaped by html/template.
var salesReportHTMLTmpl = template.Must(template.New("sales-report").Funcs(template.FuncMap{
	"pct": percent,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Sales Report {{.Month}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Sales Report {{.Month}}</h2>
  <p>Revenue: {{.ThisMonthRevenue.StringFixed 2}} (last month {{.LastMonthRevenue.StringFixed 2}}, growth {{pct .RevenueGrowth}}%)</p>
  <p>Volume: {{.ThisMonthVolumeML}} ml (last month {{.LastMonthVolumeML}} ml, growth {{pct .VolumeGrowth}}%)</p>
  <p>Average margin: {{pct .AverageMargin}}%</p>

  <h3>Top Products</h3>
  <table>
    <thead><tr><th>Perfume</th><th>Revenue</th><th>Volume (ml)</th><th>%</th></tr></thead>
    <tbody>{{range .TopProducts}}<tr><td>{{.Name}}</td><td class="num">{{.Revenue.StringFixed 2}}</td><td class="num">{{.VolumeML}}</td><td class="num">{{pct .Percent}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Categories</h3>
  <table>
    <thead><tr><th>Category</th><th>Revenue</th><th>%</th></tr></thead>
    <tbody>{{range .Categories}}<tr><td>{{.Category}}</td><td class="num">{{.Revenue.StringFixed 2}}</td><td class="num">{{pct .Percent}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Trend</h3>
  <table>
    <thead><tr><th>Month</th><th>Revenue</th><th>Growth %</th></tr></thead>
    <tbody>{{range .Trend}}<tr><td>{{.Label}} {{.Month}}</td><td class="num">{{.Revenue.StringFixed 2}}</td><td class="num">{{pct .Growth}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func salesReportToPrintableHTML(report domain.SalesReport) string {
	var buf bytes.Buffer
	if err := salesReportHTMLTmpl.Execute(&buf, report); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
