package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The panel frontend is a single-page app; the server hands out a minimal
// shell and the client fetches everything else from /v1. Keeping the shell
// server-side means the access gate runs before any app page loads.

const loginPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sign in - ZapPanel</title>
<style>
  body { font-family: -apple-system, sans-serif; background: #0f1117; color: #e6e6e6;
         display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
  .card { background: #1a1d27; border-radius: 12px; padding: 2rem; width: 320px; }
  h1 { font-size: 1.2rem; margin: 0 0 1rem; }
  input { width: 100%; box-sizing: border-box; margin-bottom: .75rem; padding: .6rem;
          border-radius: 6px; border: 1px solid #2c3040; background: #12141c; color: inherit; }
  button { width: 100%; padding: .6rem; border: 0; border-radius: 6px;
           background: #25d366; color: #08140c; font-weight: 600; cursor: pointer; }
  .err { color: #ff6b6b; font-size: .85rem; min-height: 1.2em; }
</style>
</head>
<body>
<div class="card">
  <h1>ZapPanel</h1>
  <div class="err" id="err"></div>
  <input id="email" type="email" placeholder="Email" autocomplete="username">
  <input id="password" type="password" placeholder="Password" autocomplete="current-password">
  <button onclick="login()">Sign in</button>
</div>
<script>
async function login() {
  const res = await fetch('/v1/auth/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({email: email.value, password: password.value}),
  });
  if (!res.ok) { err.textContent = 'Invalid email or password.'; return; }
  const params = new URLSearchParams(location.search);
  location.href = params.get('redirect') || '/app/dashboard';
}
</script>
</body>
</html>`

const appShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ZapPanel</title>
<style>
  body { font-family: -apple-system, sans-serif; background: #0f1117; color: #e6e6e6; margin: 0; }
  #root { padding: 2rem; }
</style>
</head>
<body>
<div id="root">Loading&hellip;</div>
<script src="/static/app.js" defer></script>
</body>
</html>`

func (s *Server) loginPageHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loginPage))
}

func (s *Server) appShellHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(appShell))
}
