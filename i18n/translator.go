package i18n

import (
	"strings"
	"sync/atomic"
)

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "expected" or "key").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator. Templates use
// {name} placeholders that are filled from data.
type dictTranslator struct{ lang string }

var dictEN = map[string]string{
	"invalid_type":        "expected {expected}, found {got}",
	"length_mismatch":     "expected {expected} items, received {got}",
	"key_mismatch":        "expected keys {expected}, received {got}",
	"flat_count":          "wrong flat count: expected {expected}, received {got}",
	"duplicate_argument":  "argument {name} is declared more than once",
	"duplicate_output":    "output {target} is declared more than once",
	"unsupported_pattern": "argument {name}: no inference rule for {type}",
	"invalid_role":        "invalid role {role}",
	"invalid_property":    "property {property} is not valid for {type}",
	"mixed_forms":         "inputs and state must both be keyword or both positional",
	"no_outputs":          "at least one output is required",
	"invalid_function":    "invalid callback function: {detail}",
	"already_registered":  "callback is already registered",
	"invalid_argument":    "argument {name}: {detail}",
	"unknown_callback":    "no callback registered for {output}",
	"missing_input":       "missing value for {target}",
	"parse_error":         "parse error",
}

var dictJA = map[string]string{
	"invalid_type":        "型が不正です ({expected} を期待、{got} を受信)",
	"length_mismatch":     "要素数が一致しません ({expected} を期待、{got} を受信)",
	"key_mismatch":        "キー集合が一致しません ({expected} を期待、{got} を受信)",
	"flat_count":          "値の個数が不正です ({expected} を期待、{got} を受信)",
	"duplicate_argument":  "引数 {name} が重複しています",
	"duplicate_output":    "出力 {target} が重複しています",
	"unsupported_pattern": "引数 {name}: {type} に対応する推論規則がありません",
	"invalid_role":        "不正なロール {role}",
	"invalid_property":    "{type} にプロパティ {property} はありません",
	"mixed_forms":         "inputs と state は両方ともキーワード形式か位置形式である必要があります",
	"no_outputs":          "出力が一つ以上必要です",
	"invalid_function":    "不正なコールバック関数: {detail}",
	"already_registered":  "コールバックは登録済みです",
	"invalid_argument":    "引数 {name}: {detail}",
	"unknown_callback":    "{output} に対応するコールバックがありません",
	"missing_input":       "{target} の値がありません",
	"parse_error":         "解析エラー",
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	dict := dictEN
	if t.lang == "ja" {
		dict = dictJA
	}
	tmpl, ok := dict[code]
	if !ok {
		return code
	}
	return fill(tmpl, data)
}

// fill substitutes {key} placeholders. Unknown placeholders are replaced with
// "?" so partially parameterized issues still read naturally.
func fill(tmpl string, data map[string]string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	b := &strings.Builder{}
	for {
		i := strings.IndexByte(tmpl, '{')
		if i < 0 {
			b.WriteString(tmpl)
			break
		}
		j := strings.IndexByte(tmpl[i:], '}')
		if j < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:i])
		key := tmpl[i+1 : i+j]
		if v, ok := data[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteByte('?')
		}
		tmpl = tmpl[i+j+1:]
	}
	return b.String()
}

type holder struct{ tr Translator }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{tr: dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	current.Store(&holder{tr: dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(&holder{tr: tr})
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return current.Load().tr.Message(code, data) }
