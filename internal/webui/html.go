package webui

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>VespAI Hornet Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        :root { --accent: #ff6600; --bg: #101410; --panel: #1a211a; --text: #e8eee8; }
        body { font-family: Arial, sans-serif; margin: 0; background: var(--bg); color: var(--text); }
        .header { display: flex; align-items: center; gap: 12px; padding: 14px 20px; background: var(--panel); }
        .header .title { font-size: 20px; font-weight: bold; color: var(--accent); }
        .badge { font-size: 12px; padding: 3px 8px; border-radius: 10px; background: #333; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 14px; padding: 14px 20px; }
        .panel { background: var(--panel); border-radius: 8px; padding: 14px; }
        .panel h2 { margin: 0 0 10px; font-size: 15px; color: var(--accent); }
        img.stream { width: 100%; height: auto; display: block; background: #000; border-radius: 4px; }
        table.stats { width: 100%; border-collapse: collapse; font-size: 13px; }
        table.stats td { padding: 4px 2px; border-bottom: 1px solid #2a332a; }
        table.stats td:last-child { text-align: right; font-weight: bold; }
        .log { font-size: 12px; max-height: 260px; overflow-y: auto; }
        .log .entry { padding: 4px 0; border-bottom: 1px solid #2a332a; }
        .log .velutina { color: #ff8040; }
        .log .crabro { color: #ffd040; }
        .log .sms { color: #80c0ff; }
        canvas#hourly { width: 100%; height: 140px; }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">&#128029; VespAI Hornet Monitor</div>
        <span class="badge" id="status-badge">Connecting...</span>
    </div>
    <div class="grid">
        <div class="panel" style="grid-row: span 2;">
            <h2>Live Feed</h2>
            <img class="stream" src="/video_feed" alt="Live detection stream">
            <h2 style="margin-top:14px;">Detections by Hour</h2>
            <canvas id="hourly"></canvas>
        </div>
        <div class="panel">
            <h2>Statistics</h2>
            <table class="stats">
                <tr><td>Asian hornets (velutina)</td><td id="total-velutina">0</td></tr>
                <tr><td>European hornets (crabro)</td><td id="total-crabro">0</td></tr>
                <tr><td>Total detections</td><td id="total-detections">0</td></tr>
                <tr><td>Detections / hour</td><td id="detection-rate">0</td></tr>
                <tr><td>Confidence</td><td id="confidence">-</td></tr>
                <tr><td>FPS</td><td id="fps">0</td></tr>
                <tr><td>Uptime</td><td id="uptime">-</td></tr>
                <tr><td>SMS sent</td><td id="sms-sent">0</td></tr>
                <tr><td>SMS cost</td><td id="sms-cost">0.000</td></tr>
                <tr><td>Saved images</td><td id="saved-images">0</td></tr>
            </table>
        </div>
        <div class="panel">
            <h2>Detection Log</h2>
            <div class="log" id="log"></div>
        </div>
    </div>
    <script>
        const badge = document.getElementById('status-badge');

        function setText(id, value) { document.getElementById(id).textContent = value; }

        function render(data) {
            setText('total-velutina', data.total_velutina);
            setText('total-crabro', data.total_crabro);
            setText('total-detections', data.total_detections);
            setText('detection-rate', data.detection_rate);
            setText('confidence', data.confidence_avg > 0 ? data.confidence_avg + '%' : '-');
            setText('fps', data.fps.toFixed(1));
            setText('uptime', data.uptime);
            setText('sms-sent', data.sms_sent);
            setText('sms-cost', data.sms_cost.toFixed(3));
            setText('saved-images', data.saved_images);

            const log = document.getElementById('log');
            log.innerHTML = '';
            (data.detection_log || []).slice().reverse().forEach(entry => {
                const div = document.createElement('div');
                div.className = 'entry ' + entry.type;
                div.textContent = entry.time + '  ' + entry.message;
                if (entry.frame_id && entry.type !== 'sms') {
                    const a = document.createElement('a');
                    a.href = '/frame/' + entry.frame_id;
                    a.textContent = ' [view]';
                    a.style.color = 'inherit';
                    div.appendChild(a);
                }
                log.appendChild(div);
            });

            drawHourly(data.hourly_stats || []);
        }

        function drawHourly(hours) {
            const canvas = document.getElementById('hourly');
            const ctx = canvas.getContext('2d');
            canvas.width = canvas.clientWidth;
            canvas.height = 140;
            ctx.clearRect(0, 0, canvas.width, canvas.height);
            const max = Math.max(1, ...hours.map(h => h.total));
            const bw = canvas.width / 24;
            hours.forEach((h, i) => {
                const vh = h.velutina / max * 110;
                const ch = h.crabro / max * 110;
                ctx.fillStyle = '#ff8040';
                ctx.fillRect(i * bw + 1, 120 - vh, bw - 2, vh);
                ctx.fillStyle = '#ffd040';
                ctx.fillRect(i * bw + 1, 120 - vh - ch, bw - 2, ch);
                if (i % 4 === 0) {
                    ctx.fillStyle = '#889088';
                    ctx.font = '10px Arial';
                    ctx.fillText(h.hour + 'h', i * bw + 2, 134);
                }
            });
        }

        const source = new EventSource('/api/stats/stream');
        source.onmessage = (e) => {
            badge.textContent = 'Live';
            render(JSON.parse(e.data));
        };
        source.onerror = () => { badge.textContent = 'Reconnecting...'; };
    </script>
</body>
</html>
`
