package capture

// extractionScript renders the application's visible state into a plain
// object. It must never throw — every failure path returns an object with
// an "error" property so the engine can fall through to the next context.
const extractionScript = `(() => {
	try {
		if (!document || !document.body) {
			return { error: 'no_document' };
		}
		const root = document.querySelector('main') || document.body;

		let style = '';
		for (const sheet of document.styleSheets) {
			try {
				for (const rule of sheet.cssRules) {
					style += rule.cssText + '\n';
				}
			} catch (e) {
				// Cross-origin sheets are unreadable; skip them.
			}
		}

		const body = getComputedStyle(document.body);
		const html = document.documentElement;
		return {
			markup: root.outerHTML,
			style: style,
			backgroundColor: body.backgroundColor,
			color: body.color,
			fontFamily: body.fontFamily,
			themeClass: html.className || '',
			themeAttr: html.getAttribute('data-theme') || '',
			colorScheme: body.colorScheme || '',
			bodyBackground: body.background,
			bodyColor: body.color
		};
	} catch (e) {
		return { error: String(e) };
	}
})()`
