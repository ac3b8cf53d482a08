package main

// Language is one of the editor languages a room can be set to.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangCpp        Language = "cpp"

	DefaultLanguage = LangJavaScript
)

var languages = map[Language]struct{}{
	LangJavaScript: {},
	LangPython:     {},
	LangJava:       {},
	LangCpp:        {},
}

func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

// ParseLanguage validates a client-supplied identifier.
func ParseLanguage(s string) (Language, error) {
	l := Language(s)
	if !l.Valid() {
		return "", ErrInvalidLanguage
	}
	return l, nil
}
