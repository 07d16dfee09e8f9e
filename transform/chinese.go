package transform

import (
	"log/slog"
	"sync"

	"github.com/longbridgeapp/opencc"
)

// Language tags that enable script conversion.
const (
	LangSimplified  = "zh-Hans"
	LangTraditional = "zh-Hant"
)

// converters holds one lazily built OpenCC converter per target script.
// Both go through Taiwan usage with phrase dictionaries: s2twp turns mainland
// simplified into Taiwan traditional, tw2sp turns it back.
var converters = map[string]func() (*opencc.OpenCC, error){
	LangSimplified:  sync.OnceValues(func() (*opencc.OpenCC, error) { return opencc.New("tw2sp") }),
	LangTraditional: sync.OnceValues(func() (*opencc.OpenCC, error) { return opencc.New("s2twp") }),
}

// ConvertChinese converts text to the script selected by language. Only
// zh-Hans and zh-Hant trigger conversion; any other language returns the
// text untouched. A converter that fails to initialize is logged and the
// original text is kept. The bool reports whether the text changed.
func ConvertChinese(language, text string) (string, bool) {
	build, ok := converters[language]
	if !ok {
		return text, false
	}
	cc, err := build()
	if err != nil {
		slog.Error("init chinese converter", "language", language, "error", err)
		return text, false
	}
	out, err := cc.Convert(text)
	if err != nil {
		slog.Error("convert chinese text", "language", language, "error", err)
		return text, false
	}
	if out != text {
		slog.Debug("converted chinese text", "language", language, "before", text, "after", out)
	}
	return out, out != text
}
