package inject

import (
	"encoding/json"
	"fmt"
)

// actionScriptTemplate delivers one message inside the target application:
// locate the active input surface, clear it, insert the text, then submit
// via the primary control or fall back to a confirm keystroke. The %s slot
// receives the JSON-encoded text, so the routine only ever sees it as a
// single string argument.
const actionScriptTemplate = `((text) => {
	try {
		const editor = document.querySelector('div[contenteditable="true"]')
			|| document.querySelector('textarea');
		if (!editor) {
			return { ok: false, reason: 'editor_not_found' };
		}

		editor.focus();
		if (editor.tagName === 'TEXTAREA') {
			editor.value = '';
		} else {
			editor.innerHTML = '';
		}

		let inserted = document.execCommand('insertText', false, text);
		if (!inserted) {
			if (editor.tagName === 'TEXTAREA') {
				editor.value = text;
			} else {
				editor.textContent = text;
			}
			editor.dispatchEvent(new InputEvent('input', { bubbles: true, data: text }));
		}

		const button = document.querySelector('button[aria-label*="Send" i]')
			|| document.querySelector('button[type="submit"]');
		if (button && !button.disabled) {
			button.click();
			return { ok: true, method: 'click_submit' };
		}

		editor.dispatchEvent(new KeyboardEvent('keydown', {
			key: 'Enter', code: 'Enter', keyCode: 13, bubbles: true
		}));
		return { ok: true, method: 'enter_key' };
	} catch (e) {
		return { ok: false, reason: String(e) };
	}
})(%s)`

// buildScript embeds text into the action routine. JSON encoding is the
// safety boundary: quotes, newlines, and script-like content in text can
// never alter the routine's structure.
func buildScript(text string) string {
	encoded, _ := json.Marshal(text)
	return fmt.Sprintf(actionScriptTemplate, encoded)
}
