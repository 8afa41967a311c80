package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"fluxMode": func(m int) string {
		switch m {
		case 0:
			return "off"
		case 1:
			return "on"
		case 2:
			return "30s"
		case 3:
			return "60s"
		}
		return "?"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Flux Capacitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.leds span { display: inline-block; width: 10px; height: 10px; margin-right: 3px; border-radius: 50%; background: #ddd; }
.leds span.lit { background: #f5c400; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Flux Capacitor<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Prop</h2>
<table>
<tr><th>Power</th><td id="powered" class="{{onOff .Prop.Powered}}">{{onOff .Prop.Powered}}</td></tr>
<tr><th>Phase</th><td id="phase" class="{{if .Updated}}on{{else}}unknown{{end}}">{{if .Updated}}{{.Prop.Phase}}{{else}}unknown{{end}}{{if .Prop.Source}} ({{.Prop.Source}}){{end}}</td></tr>
<tr><th>Chase</th><td><span id="leds" class="leds" data-mask="{{.Prop.Mask}}"></span> <span id="rate">{{.Prop.Rate}}</span> / pattern <span id="pattern">{{.Prop.Pattern}}</span></td></tr>
<tr><th>Center light</th><td id="center">{{.Prop.Center}}</td></tr>
<tr><th>Box lights</th><td id="box">{{.Prop.Box}}</td></tr>
<tr><th>Flux sound</th><td id="flux">{{fluxMode .Prop.FluxMode}}{{if .Prop.FluxPlaying}}, playing{{end}}</td></tr>
<tr><th>Volume</th><td id="volume">{{.Prop.Volume}}</td></tr>
<tr><th>Music</th><td id="music">{{onOff .Prop.Music}}</td></tr>
<tr><th>IR</th><td id="ir">{{if .Prop.Learning}}learning key {{.Prop.LearnIndex}}{{else if .Prop.IRLocked}}locked{{else}}ready{{end}}{{if .Prop.LastKey}}, last {{.Prop.LastKey}}{{end}}</td></tr>
<tr><th>Screen saver</th><td id="screen-saver">{{onOff .Prop.ScreenSaver}}</td></tr>
<tr><th>Night mode</th><td id="night">{{onOff .Prop.Night}}</td></tr>
<tr><th>Trips</th><td id="trips">{{.Prop.Trips}}</td></tr>
</table>

{{if .Prop.HaveNet}}
<h2>Time Circuits</h2>
<table>
<tr><th>Host</th><td>{{.Config.Display}}</td></tr>
<tr><th>Speed</th><td id="remote-speed">{{if lt .Prop.Remote.Speed 0}}-{{else}}{{.Prop.Remote.Speed}}{{end}}{{if .Prop.GPSSpeed}} (driving chase){{end}}</td></tr>
<tr><th>Night</th><td>{{.Prop.Remote.Night}}</td></tr>
<tr><th>Fake power off</th><td>{{.Prop.Remote.PowerOff}}</td></tr>
<tr><th>Packets</th><td>{{.Prop.NetStats.Sent}} sent, {{.Prop.NetStats.Received}} received, {{.Prop.NetStats.Timeouts}} timeouts</td></tr>
</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Session</th><td>{{.Session}}</td></tr>
<tr><th>Trigger</th><td>{{if .Config.Wired}}wired{{else}}button{{end}}</td></tr>
<tr><th>Screen saver</th><td>{{if eq .Config.ScreenSaver 0}}disabled{{else}}{{.Config.ScreenSaver}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var leds = document.getElementById("leds");
  var fluxNames = ["off", "on", "30s", "60s"];

  function set(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function drawLeds(mask) {
    leds.innerHTML = "";
    for (var i = 0; i < mask.length; i++) {
      var s = document.createElement("span");
      if (mask.charAt(i) === "1") s.className = "lit";
      leds.appendChild(s);
    }
  }

  function render(st) {
    var p = st.prop;
    set("powered", p.powered ? "on" : "off", p.powered ? "on" : "off");
    set("phase", p.phase + (p.source ? " (" + p.source + ")" : ""), "on");
    drawLeds(p.mask);
    set("rate", p.rate);
    set("pattern", p.pattern);
    set("center", p.center);
    set("box", p.box);
    set("flux", fluxNames[p.flux_mode] + (p.flux_playing ? ", playing" : ""));
    set("volume", p.volume);
    set("music", p.music ? "on" : "off");
    var ir = p.learning ? "learning key " + (p.learn_key - 1) : p.ir_locked ? "locked" : "ready";
    if (p.last_key) ir += ", last " + p.last_key;
    set("ir", ir);
    set("screen-saver", p.screen_saver ? "on" : "off");
    set("night", p.night ? "on" : "off");
    set("trips", p.trips);
  }

  drawLeds(Number(leds.dataset.mask).toString(2).padStart(8, "0"));

  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.type === "state" && msg.data) render(msg.data.status);
      } catch (e) {}
    };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
