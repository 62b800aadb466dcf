package export

import (
	"html/template"
	"io"
	"time"

	"github.com/WailSalutem-Health-Care/carelog/internal/caredate"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

// ReportOptions selects the printable layout. Detailed renders one block
// per record for a single patient; otherwise the records form one table.
type ReportOptions struct {
	Detailed    bool
	PatientName string
	GeneratedAt time.Time
}

type reportData struct {
	Title       string
	GeneratedAt string
	Total       int
	Detailed    bool
	Rows        []row
}

// WriteReport renders a self-contained HTML page meant to be printed to
// PDF from a browser.
func WriteReport(w io.Writer, records []record.Record, opts ReportOptions) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	data := reportData{
		Title:       "長照紀錄表",
		GeneratedAt: caredate.FormatLocale(opts.GeneratedAt),
		Total:       len(records),
		Detailed:    opts.Detailed,
	}
	if opts.Detailed {
		data.Title = opts.PatientName + " - 長照詳細報告"
	}
	for _, rec := range records {
		data.Rows = append(data.Rows, flatten(rec))
	}
	return reportTemplate.Execute(w, data)
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: 'Microsoft JhengHei', 'PingFang TC', 'Helvetica Neue', Arial, sans-serif; margin: 20px; font-size: 12px; line-height: 1.4; }
.header { text-align: center; margin-bottom: 30px; border-bottom: 2px solid #333; padding-bottom: 10px; }
.title { font-size: 24px; font-weight: bold; margin-bottom: 10px; }
.subtitle { font-size: 14px; color: #666; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; font-size: 10px; }
th { background-color: #f5f5f5; font-weight: bold; }
.record-item { margin-bottom: 20px; padding: 15px; border: 1px solid #ddd; border-radius: 5px; }
.record-header { font-weight: bold; font-size: 14px; margin-bottom: 10px; color: #333; }
.record-row { display: flex; margin-bottom: 5px; }
.record-label { font-weight: bold; width: 100px; flex-shrink: 0; }
.record-value { flex: 1; }
@media print { body { margin: 0; } .page-break { page-break-before: always; } }
</style>
</head>
<body>
<div class="header">
<div class="title">{{.Title}}</div>
<div class="subtitle">生成日期: {{.GeneratedAt}} | 總計紀錄: {{.Total}} 筆</div>
</div>
{{- if .Detailed}}
{{- range $i, $r := .Rows}}
<div class="record-item{{if $i}} page-break{{end}}">
<div class="record-header">紀錄 {{inc $i}} - {{$r.Date}}</div>
<div class="record-row"><div class="record-label">姓名:</div><div class="record-value">{{$r.Name}}</div><div class="record-label">年齡:</div><div class="record-value">{{$r.Age}}</div><div class="record-label">房號:</div><div class="record-value">{{$r.Room}}</div></div>
<div class="record-row"><div class="record-label">早餐:</div><div class="record-value">{{$r.Breakfast}}</div><div class="record-label">午餐:</div><div class="record-value">{{$r.Lunch}}</div><div class="record-label">晚餐:</div><div class="record-value">{{$r.Dinner}}</div></div>
<div class="record-row"><div class="record-label">喝水量:</div><div class="record-value">{{$r.Water}}</div><div class="record-label">血壓:</div><div class="record-value">{{$r.BloodPressure}}</div><div class="record-label">脈搏:</div><div class="record-value">{{$r.Pulse}}</div></div>
<div class="record-row"><div class="record-label">體溫:</div><div class="record-value">{{$r.Temp}}</div><div class="record-label">睡眠:</div><div class="record-value">{{$r.Sleep}}</div></div>
{{- if $r.HasNote}}
<div class="record-row"><div class="record-label">備註:</div><div class="record-value">{{$r.Note}}</div></div>
{{- end}}
</div>
{{- end}}
{{- else}}
<table>
<thead>
<tr><th>日期時間</th><th>姓名</th><th>年齡</th><th>房號</th><th>早餐</th><th>午餐</th><th>晚餐</th><th>喝水量</th><th>血壓</th><th>脈搏</th><th>體溫</th><th>睡眠</th><th>備註</th></tr>
</thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Date}}</td><td>{{.Name}}</td><td>{{.Age}}</td><td>{{.Room}}</td><td>{{.Breakfast}}</td><td>{{.Lunch}}</td><td>{{.Dinner}}</td><td>{{.Water}}</td><td>{{.BloodPressure}}</td><td>{{.Pulse}}</td><td>{{.Temp}}</td><td>{{.Sleep}}</td><td>{{.Note}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
</body>
</html>
`))
