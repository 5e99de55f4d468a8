package scrape

const acceptCookiesJS = `(() => {
  const labels = [/accept recommended settings/i, /accept all/i, /accept/i];
  const buttons = Array.from(document.querySelectorAll('button, [role=button]'))
    .filter(b => b.offsetParent !== null);
  for (const re of labels) {
    const btn = buttons.find(b => re.test((b.textContent || '').trim()));
    if (btn) { btn.click(); return true; }
  }
  return false;
})()`

// fillPostcodeTmpl takes the postcode as a quoted JS string.
const fillPostcodeTmpl = `(() => {
  const postcode = %s;
  const visible = el => el && el.offsetParent !== null && !el.disabled;
  const byLabel = Array.from(document.querySelectorAll('label'))
    .filter(l => /postcode/i.test(l.textContent || ''))
    .map(l => l.control).filter(Boolean);
  const selectors = [
    'input[placeholder*=postcode i]', 'input[aria-label*=postcode i]',
    'input[name=postcode]', 'input[id*=postcode]',
    'input[type=search]', 'input[type=text]', 'input',
  ];
  let box = byLabel.find(visible);
  for (const sel of selectors) {
    if (box) break;
    box = Array.from(document.querySelectorAll(sel)).find(visible);
  }
  if (!box) return false;
  box.focus();
  box.value = postcode;
  box.dispatchEvent(new Event('input', { bubbles: true }));
  box.dispatchEvent(new Event('change', { bubbles: true }));
  const search = Array.from(document.querySelectorAll('button, input[type=submit]'))
    .find(b => visible(b) && /search/i.test(b.textContent || b.value || ''));
  if (search) {
    search.click();
  } else if (box.form) {
    box.form.requestSubmit ? box.form.requestSubmit() : box.form.submit();
  } else {
    box.dispatchEvent(new KeyboardEvent('keydown', { key: 'Enter', bubbles: true }));
  }
  return true;
})()`

const listOptionsJS = `(() => {
  const sel = document.querySelector('select');
  if (!sel) return [];
  return Array.from(sel.options).map(o => ({ value: o.value, text: o.textContent || '' }));
})()`

// selectOptionTmpl takes the option value as a quoted JS string.
const selectOptionTmpl = `(() => {
  const sel = document.querySelector('select');
  if (!sel) return false;
  sel.value = %s;
  sel.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

// extractJS pairs every bold date line with the nearest h3 heading.
const extractJS = `(() => {
  const dateRe = /(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s*,?\s*\d{1,2}\s+[a-z]+\s+\d{4}/i;
  const matches = [];
  document.querySelectorAll('strong, b').forEach(el => {
    const txt = (el.textContent || '').trim();
    if (!dateRe.test(txt)) return;
    let title = null;
    let node = el;
    while (node) {
      const h3 = node.querySelector ? node.querySelector('h3') : null;
      if (h3 && h3.textContent.trim()) { title = h3.textContent.trim(); break; }
      if (node.previousElementSibling) {
        const prev = node.previousElementSibling.closest('h3');
        if (prev && prev.textContent.trim()) { title = prev.textContent.trim(); break; }
      }
      node = node.parentElement;
    }
    if (!title) {
      const nearest = el.closest('section, article, div');
      const h3 = nearest ? nearest.querySelector('h3') : null;
      if (h3 && h3.textContent.trim()) title = h3.textContent.trim();
    }
    matches.push({ title: title || '', date: txt });
  });
  return matches;
})()`
