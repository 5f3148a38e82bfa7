package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
)

// frontendHTML is the embedded edge calculator. It calls /api/v1/edge and
// lists the intermediate points of the densified geodesic.
const frontendHTML = `<!DOCTYPE html>
<html lang="de">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>geodensify - Geodätische Verdichtung</title>
    <style>
        :root {
            --primary: #2563eb;
            --primary-dark: #1d4ed8;
            --error: #dc2626;
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --text-muted: #64748b;
            --border: #e2e8f0;
            --radius: 8px;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
        }
        .container { max-width: 800px; margin: 0 auto; padding: 1rem; }
        header { text-align: center; padding: 1.5rem 0; border-bottom: 1px solid var(--border); margin-bottom: 1.5rem; }
        header h1 { font-size: 1.5rem; font-weight: 600; }
        header p { color: var(--text-muted); font-size: 0.875rem; }
        .card { background: var(--card); border: 1px solid var(--border); border-radius: var(--radius); padding: 1.25rem; margin-bottom: 1rem; }
        .card-title { font-size: 1rem; font-weight: 600; margin-bottom: 1rem; }
        .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 0.75rem; }
        .form-group { margin-bottom: 0.75rem; }
        label { display: block; font-size: 0.875rem; font-weight: 500; margin-bottom: 0.25rem; }
        input, select { width: 100%; padding: 0.5rem 0.75rem; border: 1px solid var(--border); border-radius: var(--radius); font-size: 1rem; }
        .btn { background: var(--primary); color: #fff; border: none; border-radius: var(--radius); padding: 0.625rem 1.25rem; font-size: 1rem; cursor: pointer; }
        .btn:hover { background: var(--primary-dark); }
        .btn:disabled { opacity: 0.6; cursor: not-allowed; }
        .error { display: none; color: var(--error); border: 1px solid var(--error); border-radius: var(--radius); padding: 0.75rem; margin-bottom: 1rem; }
        .error.active, #results.active { display: block; }
        #results { display: none; }
        .stats { display: flex; flex-wrap: wrap; gap: 1rem; margin-bottom: 1rem; font-size: 0.875rem; }
        .stats strong { display: block; font-size: 1.125rem; }
        table { width: 100%; border-collapse: collapse; font-size: 0.8125rem; font-family: monospace; }
        th, td { text-align: right; padding: 0.25rem 0.5rem; border-bottom: 1px solid var(--border); }
        footer { text-align: center; padding: 1.5rem 0; font-size: 0.8125rem; color: var(--text-muted); }
        footer a { color: var(--primary); text-decoration: none; }
        @media (max-width: 480px) { .grid { grid-template-columns: 1fr; } }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>geodensify</h1>
            <p>Verdichtung einer geodätischen Linie auf dem Ellipsoid</p>
        </header>

        <div class="card">
            <h2 class="card-title">Linie eingeben</h2>
            <form id="edgeForm">
                <div class="grid">
                    <div class="form-group">
                        <label for="lat1">Start Breite (Lat)</label>
                        <input type="text" id="lat1" value="-35.2809" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="lon1">Start Länge (Lon)</label>
                        <input type="text" id="lon1" value="149.1300" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="lat2">Ziel Breite (Lat)</label>
                        <input type="text" id="lat2" value="-12.4634" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="lon2">Ziel Länge (Lon)</label>
                        <input type="text" id="lon2" value="130.8456" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="ellipsoid">Ellipsoid</label>
                        <select id="ellipsoid"></select>
                    </div>
                    <div class="form-group">
                        <label for="spacing">Maximaler Abstand (Meter)</label>
                        <input type="text" id="spacing" value="900" inputmode="decimal" required>
                    </div>
                </div>
                <button type="submit" class="btn" id="submitBtn">Berechnen</button>
            </form>
        </div>

        <div class="error" id="error"></div>

        <div id="results">
            <div class="card">
                <h2 class="card-title">Ergebnis</h2>
                <div class="stats" id="stats"></div>
                <table>
                    <thead><tr><th>#</th><th>Breite</th><th>Länge</th></tr></thead>
                    <tbody id="points"></tbody>
                </table>
            </div>
        </div>

        <footer>
            <a href="/docs">API Dokumentation</a> &middot;
            <a href="/openapi.json">OpenAPI Spec</a> &middot;
            <a href="/health">Health Status</a>
        </footer>
    </div>

    <script>
        (function() {
            const form = document.getElementById('edgeForm');
            const ellipsoid = document.getElementById('ellipsoid');
            const submitBtn = document.getElementById('submitBtn');
            const error = document.getElementById('error');
            const results = document.getElementById('results');
            const stats = document.getElementById('stats');
            const points = document.getElementById('points');

            fetch('/api/v1/ellipsoids')
                .then(function(r) { return r.json(); })
                .then(function(data) {
                    data.ellipsoids.forEach(function(e) {
                        const opt = document.createElement('option');
                        opt.value = e.name;
                        opt.textContent = e.name + ' (a=' + e.a + ', 1/f=' + e.inv_flattening + ')';
                        opt.selected = e.name === data.default;
                        ellipsoid.appendChild(opt);
                    });
                })
                .catch(function() { showError('Ellipsoide konnten nicht geladen werden.'); });

            function num(id) {
                return parseFloat(document.getElementById(id).value.replace(',', '.'));
            }

            form.addEventListener('submit', async function(e) {
                e.preventDefault();
                error.classList.remove('active');

                const params = new URLSearchParams();
                for (const id of ['lat1', 'lon1', 'lat2', 'lon2', 'spacing']) {
                    const v = num(id);
                    if (isNaN(v)) {
                        showError('Bitte geben Sie gültige Zahlen ein.');
                        return;
                    }
                    params.set(id, v);
                }
                params.set('ellipsoid', ellipsoid.value);

                submitBtn.disabled = true;
                try {
                    const response = await fetch('/api/v1/edge?' + params.toString());
                    const data = await response.json();
                    if (!response.ok) {
                        throw new Error(data.message || data.error || 'Berechnung fehlgeschlagen');
                    }
                    display(data);
                } catch (err) {
                    showError(err.message);
                } finally {
                    submitBtn.disabled = false;
                }
            });

            function display(data) {
                stats.innerHTML =
                    '<div>Distanz<strong>' + (data.distance_m / 1000).toFixed(3) + ' km</strong></div>' +
                    '<div>Azimut<strong>' + data.azimuth_deg.toFixed(4) + '°</strong></div>' +
                    '<div>Segmente<strong>' + data.segments + '</strong></div>' +
                    '<div>Zwischenpunkte<strong>' + data.points.length + '</strong></div>';

                let html = '';
                data.points.forEach(function(p, i) {
                    html += '<tr><td>' + (i + 1) + '</td><td>' + p[1].toFixed(8) + '</td><td>' + p[0].toFixed(8) + '</td></tr>';
                });
                points.innerHTML = html;
                results.classList.add('active');
            }

            function showError(message) {
                error.textContent = message;
                error.classList.add('active');
            }
        })();
    </script>
</body>
</html>`

// handleFrontend serves the edge calculator frontend.
func (s *Server) handleFrontend(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(frontendHTML))
}
