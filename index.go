package main

import "net/http"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Collab Code Relay</title>
<style>
body{font-family:system-ui,sans-serif;background:#1e1e1e;color:#ddd;max-width:560px;margin:48px auto;padding:0 16px}
h1{font-size:18px}
code{font-family:Consolas,monospace;color:#9cdcfe}
table{width:100%;border-collapse:collapse;font-size:13px}
td{padding:6px 8px;border-bottom:1px solid #333}
.ok{color:#4ec9b0}.err{color:#f48771}
</style>
</head>
<body>
<h1>Collab Code Relay <span id="status">checking</span></h1>
<p>Room synchronization for the collaborative editor. Connect a WebSocket to <code>/ws</code>
and exchange <code>{"event": ..., "data": ...}</code> frames.</p>
<table>
<tr><td><code>GET /health</code></td><td>liveness, room and connection counts</td></tr>
<tr><td><code>GET /api/rooms</code></td><td>active rooms</td></tr>
<tr><td><code>WS /ws</code></td><td>join, leaveRoom, codeChange, typing, languageChange, compileCode</td></tr>
</table>
<script>
fetch('/health').then(function(r){return r.json()}).then(function(j){
var s=document.getElementById('status');
s.textContent=j.status==='ok'?'online ('+j.rooms+' rooms)':'offline';
s.className=j.status==='ok'?'ok':'err';
}).catch(function(){var s=document.getElementById('status');s.textContent='offline';s.className='err'});
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(indexHTML))
}
