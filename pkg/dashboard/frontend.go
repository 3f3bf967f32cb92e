package dashboard

import "net/http"

func (d *Dashboard) serveFrontend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(frontendHTML))
}

const frontendHTML = `<!DOCTYPE html>
<html lang="en"><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Wave Portal</title>
<style>
:root{--bg:#08090d;--sf:#0f1118;--sf2:#161923;--bd:#252a3a;--tx:#c8cdd8;--tx2:#8891a5;--tx3:#5a6278;--ac:#3b82f6;--gn:#10b981;--rd:#ef4444;--or:#f59e0b;--pr:#a855f7;--go:#eab308}
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:ui-monospace,'JetBrains Mono',monospace;background:var(--bg);color:var(--tx);min-height:100vh}
.app{max-width:860px;margin:0 auto;padding:20px 24px}
.hdr{display:flex;justify-content:space-between;align-items:center;padding:16px 0;border-bottom:1px solid var(--bd);margin-bottom:24px}
.hdr h1{font-size:22px;font-weight:700;background:linear-gradient(135deg,var(--ac),var(--pr));-webkit-background-clip:text;-webkit-text-fill-color:transparent}
.live{font-size:9px;padding:3px 10px;border-radius:20px;background:rgba(16,185,129,.1);color:var(--gn);border:1px solid rgba(16,185,129,.2);letter-spacing:1.5px;font-weight:600;margin-left:12px}
.live.off{color:var(--tx3);background:0;border-color:var(--bd)}
.sts{display:grid;grid-template-columns:repeat(3,1fr);gap:12px;margin-bottom:24px}
.st{background:var(--sf);border:1px solid var(--bd);border-radius:10px;padding:15px 16px}
.st .v{font-size:22px;font-weight:700;color:var(--ac)}
.st .l{font-size:9px;color:var(--tx3);text-transform:uppercase;letter-spacing:.8px;margin-top:5px}
.pn{background:var(--sf);border:1px solid var(--bd);border-radius:12px;margin-bottom:18px;overflow:hidden}
.pn-h{padding:13px 18px;border-bottom:1px solid var(--bd);background:var(--sf2);font-size:13px;font-weight:600}
.form{display:flex;gap:10px;padding:14px 18px}
.form input{flex:1;padding:10px 12px;background:var(--sf2);border:1px solid var(--bd);border-radius:8px;color:var(--tx);font-family:inherit;font-size:12px;outline:0}
.btn{font-family:inherit;font-size:11px;padding:10px 18px;border:none;border-radius:8px;cursor:pointer;font-weight:600;background:var(--ac);color:#fff}
.btn:disabled{opacity:.5;cursor:wait}
.wv{padding:12px 18px;border-bottom:1px solid rgba(37,42,58,.4)}
.wv .a{color:var(--go);font-size:11px}.wv .t{color:var(--tx3);font-size:10px;float:right}
.wv .m{margin-top:6px;font-size:13px;word-break:break-word}
.wv.new{animation:flash 1.5s}
@keyframes flash{from{background:rgba(16,185,129,.12)}to{background:0}}
.notice{padding:11px 16px;border-radius:8px;margin-bottom:18px;border-left:3px solid var(--or);background:rgba(245,158,11,.06);color:#fcd34d;font-size:12px}
.notice.info{border-color:var(--gn);background:rgba(16,185,129,.06);color:var(--gn)}
.emp{text-align:center;padding:40px;color:var(--tx3);font-size:12px}
</style></head><body>
<div class="app">
  <div class="hdr"><div style="display:flex;align-items:center"><h1>👋 Wave Portal</h1><span id="live" class="live off">OFFLINE</span></div><div id="acct" style="font-size:11px;color:var(--tx2)"></div></div>
  <div id="notice"></div>
  <div class="sts">
    <div class="st"><div class="v" id="total">0</div><div class="l">Total waves</div></div>
    <div class="st"><div class="v" id="mined">0</div><div class="l">Sent from here</div></div>
    <div class="st"><div class="v" id="pending">-</div><div class="l">Status</div></div>
  </div>
  <div class="pn"><div class="pn-h">Send a wave</div>
    <form class="form" id="form"><input id="msg" maxlength="280" placeholder="Say hi..."><button class="btn" id="send">Wave at me</button></form>
  </div>
  <div class="pn"><div class="pn-h">Waves</div><div id="waves"><div class="emp">Loading...</div></div></div>
</div>
<script>
const ab=a=>a?(a.slice(0,6)+'...'+a.slice(-4)):'-';
const esc=s=>s.replace(/[&<>"]/g,c=>({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
const $=id=>document.getElementById(id);
let waves=[];
function render(fresh){
  $('waves').innerHTML=waves.length?waves.map((w,i)=>'<div class="wv'+(fresh&&i===0?' new':'')+'"><span class="a" title="'+w.address+'">'+ab(w.address)+'</span><span class="t">'+new Date(w.timestamp).toLocaleString()+'</span><div class="m">'+esc(w.message)+'</div></div>').join(''):'<div class="emp">No waves yet</div>';
}
function notice(text,kind){$('notice').innerHTML=text?'<div class="notice '+(kind||'')+'">'+esc(text)+'</div>':''}
function stats(){
  fetch('/api/stats').then(r=>r.json()).then(s=>{
    $('total').textContent=s.total_waves;
    $('mined').textContent=(s.submissions&&s.submissions.mined)||0;
    $('pending').textContent=s.pending?'Mining...':(s.ready?'Ready':'Loading');
    $('acct').textContent=s.connected?ab(s.account):'no wallet connected';
    $('send').disabled=!!s.pending;
  }).catch(()=>{});
}
function connect(){
  const ws=new WebSocket((location.protocol==='https:'?'wss://':'ws://')+location.host+'/ws');
  ws.onopen=()=>{$('live').className='live';$('live').textContent='LIVE'};
  ws.onclose=()=>{$('live').className='live off';$('live').textContent='OFFLINE';setTimeout(connect,3000)};
  ws.onmessage=e=>{
    const m=JSON.parse(e.data);
    if(m.type==='snapshot'){waves=m.waves||[];render(false)}
    if(m.type==='wave'){waves.unshift(m.wave);render(true)}
    $('total').textContent=m.total;
  };
}
$('form').onsubmit=e=>{
  e.preventDefault();
  const message=$('msg').value;
  $('send').disabled=true;$('pending').textContent='Mining...';
  fetch('/api/waves',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify({message})})
    .then(r=>r.json()).then(r=>{if(r.error){notice(r.notice)}else{$('msg').value='';notice('Mined in block '+r.block,'info')}})
    .catch(()=>notice('request failed')).finally(stats);
};
connect();stats();setInterval(stats,8000);
</script>
</body></html>`
