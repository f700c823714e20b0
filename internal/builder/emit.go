package builder

import (
	"encoding/json"
	"strings"
)

const (
	bundleHeader = "(() => {\n"
	bundleFooter = "})();\n"

	// loader is the memoizing require of a bundle. The module record is cached
	// before its factory runs so that circular requires observe the partially
	// populated exports instead of running the factory again.
	loader = `  var cache = {};
  function require(moduleId) {
    var cachedModule = cache[moduleId];
    if (cachedModule !== undefined) {
      return cachedModule.exports;
    }
    var module = (cache[moduleId] = {
      exports: {}
    });
    modules[moduleId](module, module.exports, require);
    return module.exports;
  }
`
)

// Emit renders chunk as a self-executing script: a private registry of module
// factories, the loader, and the inlined entry module.
func Emit(c *Chunk) string {
	var b strings.Builder

	b.WriteString(bundleHeader)
	b.WriteString("  var modules = {\n")
	for _, m := range c.Modules {
		if m.ID == c.EntryModule.ID {
			continue
		}
		b.WriteString("    ")
		b.WriteString(quote(m.ID))
		b.WriteString(": function (module, exports, require) {\n")
		writeSource(&b, m.Source)
		b.WriteString("    },\n")
	}
	b.WriteString("  };\n")

	b.WriteString(loader)

	b.WriteString("  var entryModule = (cache[")
	b.WriteString(quote(c.EntryModule.ID))
	b.WriteString("] = {\n    exports: {}\n  });\n")
	b.WriteString("  (function (module, exports, require) {\n")
	writeSource(&b, c.EntryModule.Source)
	b.WriteString("  })(entryModule, entryModule.exports, require);\n")

	b.WriteString(bundleFooter)
	return b.String()
}

func writeSource(b *strings.Builder, src string) {
	b.WriteString(src)
	if !strings.HasSuffix(src, "\n") {
		b.WriteByte('\n')
	}
}

func quote(s string) string {
	bs, _ := json.Marshal(s) // strings always marshal
	return string(bs)
}
