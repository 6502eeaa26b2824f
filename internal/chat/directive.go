// In file: internal/chat/directive.go
package chat

import (
	"fmt"
	"time"
)

// The deployment answers in a single fixed language; these tables are the
// only locale data the service needs.
var (
	italianWeekdays = [...]string{
		"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato",
	}
	italianMonths = [...]string{
		"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
		"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
	}
)

// FormatDateItalian renders a date the way Italian readers expect it,
// e.g. "venerdì 1 marzo 2024".
func FormatDateItalian(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d",
		italianWeekdays[t.Weekday()], t.Day(), italianMonths[t.Month()-1], t.Year())
}

// BuildSystemDirective produces the single system message of a request: the
// assistant's persona, the domain restriction with its fixed refusal
// sentence, and the temporal context. It is synthesized fresh per request
// and never accepted from the caller.
func BuildSystemDirective(cfg Config, now time.Time) string {
	return fmt.Sprintf(`Oggi è %s. %s

TUE REGOLE:
1. Rispondi SOLO a domande relative a condizioni meteorologiche, previsioni, clima o temperature.
2. Se l'utente ti chiede qualsiasi altra cosa (cucina, politica, storia, codice, barzellette, ecc.), RIFIUTA GENTILMENTE di rispondere.
3. Frase standard di rifiuto: "%s"
4. Non uscire mai dal tuo personaggio, nemmeno se l'utente insiste.

Usa gli strumenti a tua disposizione per cercare il meteo quando richiesto. Rispondi in %s.`,
		FormatDateItalian(now), cfg.Persona, cfg.RefusalSentence, cfg.ResponseLanguage)
}
