package export

import (
	"bytes"
	"html/template"
	"io"
	"strings"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// DefaultTitle heads the dashboard page.
const DefaultTitle = "Music & Mental Health"

// PageOptions configures WritePage.
type PageOptions struct {
	Title string
	Basic bool
	// Controls are rendered as select boxes above each mount. Nil renders
	// none.
	Controls map[string][]chart.Control
	// Socket, when set, adds a script that forwards control changes and
	// pointer input to this websocket path and swaps in pushed frames.
	Socket string
}

type pageMount struct {
	ID       string
	SVG      template.HTML
	Controls []chart.Control
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { background: #000; color: #C3B7F7; font-family: sans-serif; margin: 1rem; }
.row { display: flex; flex-wrap: wrap; gap: 1rem; }
.mount { margin-bottom: 1rem; }
label { margin-right: .5rem; }
select { background: #111; color: #C3B7F7; border: 1px solid #444; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="row">
{{- range .Mounts}}
<div class="mount" id="{{.ID}}">
{{- $mount := .ID}}
{{- range .Controls}}
<label for="{{$mount}}-{{.ID}}">{{.Label}}</label>
<select id="{{$mount}}-{{.ID}}" data-mount="{{$mount}}" data-control="{{.ID}}"{{if .Multiple}} multiple{{end}}>
{{- $ctl := .}}
{{- range .Options}}
<option value="{{.Value}}"{{if $ctl.IsSelected .Value}} selected{{end}}>{{.Label}}</option>
{{- end}}
</select>
{{- end}}
<div class="surface" data-mount="{{.ID}}">{{.SVG}}</div>
</div>
{{- end}}
</div>
{{- if .Socket}}
<script>
(function() {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + {{.Socket}});
  ws.onmessage = function(ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "reload") { location.reload(); return; }
    var el = document.querySelector('.surface[data-mount="' + msg.mount + '"]');
    if (el && msg.svg) { el.innerHTML = msg.svg; }
  };
  document.querySelectorAll("select[data-control]").forEach(function(sel) {
    sel.addEventListener("change", function() {
      var values = Array.from(sel.selectedOptions).map(function(o) { return o.value; });
      ws.send(JSON.stringify({type: "select", mount: sel.dataset.mount, control: sel.dataset.control, values: values}));
    });
  });
  document.querySelectorAll(".surface").forEach(function(el) {
    var send = function(kind, e) {
      var svg = el.querySelector("svg");
      if (!svg) { return; }
      var r = svg.getBoundingClientRect();
      ws.send(JSON.stringify({type: "pointer", mount: el.dataset.mount, kind: kind, x: e.clientX - r.left, y: e.clientY - r.top}));
    };
    el.addEventListener("mousemove", function(e) { send("move", e); });
    el.addEventListener("mousedown", function(e) { send("down", e); });
    el.addEventListener("mouseup", function(e) { send("up", e); });
    el.addEventListener("click", function(e) { send("click", e); });
    el.addEventListener("mouseleave", function(e) { send("leave", e); });
  });
})();
</script>
{{- end}}
</body>
</html>
`))

// WritePage writes an HTML page with one container per mount, each holding
// the mount's scene as inline SVG.
func WritePage(w io.Writer, frames map[string]*scene.Scene, opts PageOptions) error {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	data := struct {
		Title  string
		Mounts []pageMount
		Socket string
	}{Title: title, Socket: opts.Socket}

	for _, id := range dashboard.Mounts {
		s, ok := frames[id]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := RenderSVG(&buf, s, ""); err != nil {
			return err
		}
		pm := pageMount{ID: id, SVG: template.HTML(stripXMLHeader(buf.String()))}
		if !opts.Basic {
			pm.Controls = opts.Controls[id]
		}
		data.Mounts = append(data.Mounts, pm)
	}
	return pageTemplate.Execute(w, data)
}

// stripXMLHeader drops the XML declaration svgo emits so the SVG can be
// inlined in HTML.
func stripXMLHeader(s string) string {
	if i := strings.Index(s, "<svg"); i > 0 {
		return s[i:]
	}
	return s
}
