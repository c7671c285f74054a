package server

import (
	"html/template"
	"net/http"
)

type indexData struct {
	GraphID  string
	Selector string
	Height   float64
}

// handleIndex renders the host page for the first graph
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	e, ok := s.graphs[s.fallback]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "no graph to show; create one with POST /api/graphs", http.StatusNotFound)
		return
	}

	canvas := e.graph.Canvas()
	data := indexData{
		GraphID:  e.graph.ID(),
		Selector: canvas.Selector,
		Height:   canvas.Height,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index", "err", err)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>dirgraph</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; color: #333; }
    .dirGraph text { font-size: 11px; pointer-events: none; }
    circle.node { fill: #4285f4; stroke: #fff; stroke-width: 1.5px; cursor: grab; }
    path.link { stroke: #999; stroke-width: 1.2px; }
    #edges { width: 100%; height: 6em; font-family: monospace; }
  </style>
</head>
<body>
  <div id="graph" data-graph="{{.GraphID}}" data-selector="{{.Selector}}"></div>
  <textarea id="edges" placeholder='[{"source":"a","target":"b","value":1}]'></textarea>
  <button id="apply">Update</button>
  <span id="status"></span>
<script>
(function () {
  const host = document.getElementById('graph');
  const id = host.dataset.graph;
  const ns = 'http://www.w3.org/2000/svg';
  const svg = document.createElementNS(ns, 'svg');
  svg.setAttribute('width', '100%');
  svg.setAttribute('height', '{{.Height}}');
  svg.innerHTML = '<defs><marker id="end" viewBox="0 -5 10 10" refX="15" refY="-1.5" markerWidth="4" markerHeight="4" orient="auto"><path d="M0,-5L10,0L0,5"/></marker></defs>';
  const groups = {};
  for (const name of ['nodes', 'links', 'texts']) {
    const g = document.createElementNS(ns, 'g');
    g.setAttribute('class', name + ' dirGraph');
    svg.appendChild(g);
    groups[name] = g;
  }
  host.appendChild(svg);

  const elements = { nodes: new Map(), links: new Map(), texts: new Map() };
  function sync(layer, tag, items, key, apply) {
    const seen = new Set();
    for (const item of items) {
      const k = key(item);
      seen.add(k);
      let el = elements[layer].get(k);
      if (!el) {
        el = document.createElementNS(ns, tag);
        el.dataset.key = k;
        groups[layer].appendChild(el);
        elements[layer].set(k, el);
      }
      el.setAttribute('opacity', item.opacity);
      apply(el, item);
    }
    for (const [k, el] of elements[layer]) {
      if (!seen.has(k)) { el.remove(); elements[layer].delete(k); }
    }
  }

  function draw(frame) {
    sync('nodes', 'circle', frame.nodes, n => n.id, (el, n) => {
      el.setAttribute('class', 'node ' + n.state);
      el.setAttribute('cx', n.x);
      el.setAttribute('cy', n.y);
      el.setAttribute('r', n.r);
    });
    sync('links', 'path', frame.links, l => l.key, (el, l) => {
      el.setAttribute('class', 'link ' + l.state);
      el.setAttribute('d', l.d);
      el.setAttribute('fill', 'none');
      el.setAttribute('marker-end', 'url(#end)');
    });
    sync('texts', 'text', frame.labels, t => t.id, (el, t) => {
      el.setAttribute('x', t.x);
      el.setAttribute('y', t.y);
      el.setAttribute('dx', 12);
      el.setAttribute('dy', '.35em');
      el.textContent = t.text;
    });
  }

  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/api/graphs/' + id + '/ws');
  ws.onmessage = ev => draw(JSON.parse(ev.data));

  function point(ev) {
    const p = svg.createSVGPoint();
    p.x = ev.clientX; p.y = ev.clientY;
    return p.matrixTransform(svg.getScreenCTM().inverse());
  }
  let dragging = null;
  svg.addEventListener('pointerdown', ev => {
    if (ev.target.tagName !== 'circle') return;
    dragging = ev.target.dataset.key;
    svg.setPointerCapture(ev.pointerId);
    ws.send(JSON.stringify({ type: 'dragstart', id: dragging }));
  });
  svg.addEventListener('pointermove', ev => {
    if (!dragging) return;
    const p = point(ev);
    ws.send(JSON.stringify({ type: 'drag', id: dragging, x: p.x, y: p.y }));
  });
  function release() {
    if (!dragging) return;
    ws.send(JSON.stringify({ type: 'dragend', id: dragging }));
    dragging = null;
  }
  svg.addEventListener('pointerup', release);
  svg.addEventListener('pointercancel', release);

  document.getElementById('apply').addEventListener('click', async () => {
    const res = await fetch('/api/graphs/' + id + '/edges', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: document.getElementById('edges').value || '[]'
    });
    const body = await res.json();
    document.getElementById('status').textContent = res.ok
      ? 'enter ' + (body.nodes.enter || []).length + ', exit ' + (body.nodes.exit || []).length
      : body.error;
  });
})();
</script>
</body>
</html>
`))
