package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/pmaher/treatbot/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Treatbot</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.idle { color: #888; }
.waiting { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Treatbot ({{.Config.Role}})</h1>

<h2>Session</h2>
<table>
<tr><th>State</th><td class="{{if eq (stateOrUnknown (printf "%s" .State)) "ACTIVE"}}active{{else if eq (stateOrUnknown (printf "%s" .State)) "WAITING_PEER"}}waiting{{else}}idle{{end}}">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Cat proximity</th><td>{{if .ScoreOK}}{{.Score}}/10{{else}}not seen{{end}}</td></tr>
<tr><th>Cycles this hour</th><td>{{.Cycles}} / {{.Config.MaxCyclesPerHour}}</td></tr>
<tr><th>Next start</th><td>{{if .NextStartSet}}{{.NextStart.UTC.Format "2006-01-02T15:04:05Z"}}{{else}}none scheduled{{end}}</td></tr>
<tr><th>Speed factor</th><td>{{printf "%.2f" .SpeedFactor}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Peer link</th><td class="{{if .PeerConnected}}connected{{else}}disconnected{{end}}">{{if .PeerConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Serial</th><td>{{.Config.SerialDevice}} @ {{.Config.SerialBaud}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Start hour</th><td>{{printf "%02d:00" .Config.StartHour}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
