package web

import "github.com/gofiber/fiber/v2"

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>liftkit</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
h1 { color: #6cf; }
button { margin: 0 0.5em 0.5em 0; }
#readout { white-space: pre; background: #1a1a1a; padding: 1em; }
</style>
</head>
<body>
<h1>liftkit</h1>
<div id="scenarios"></div>
<div id="readout">idle</div>
<script>
const readout = document.getElementById('readout');
let ws = null;

fetch('/api/scenarios').then(r => r.json()).then(list => {
  const div = document.getElementById('scenarios');
  for (const s of list) {
    const b = document.createElement('button');
    b.textContent = s.name;
    b.title = s.description;
    b.onclick = () => watch(s.name);
    div.appendChild(b);
  }
});

function watch(name) {
  if (ws) ws.close();
  ws = new WebSocket('ws://' + location.host + '/ws/live/' + name);
  ws.onmessage = ev => {
    const m = JSON.parse(ev.data);
    if (m.done) { readout.textContent += '\ndone: ' + JSON.stringify(m.metrics); return; }
    readout.textContent =
      'scenario    ' + name +
      '\ntime        ' + m.T.toFixed(2) + ' s' +
      '\nangle       ' + m.Angle.toFixed(4) + ' rad' +
      '\nsetpoint    ' + m.Setpoint.toFixed(4) + ' rad' +
      '\npower       ' + m.Power.toFixed(3) +
      '\nin position ' + m.InPosition +
      '\ncalibrated  ' + m.Calibrated +
      '\nenabled     ' + m.Enabled +
      '\nbracing     ' + m.Bracing;
  };
}
</script>
</body>
</html>`

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(indexHTML)
}
