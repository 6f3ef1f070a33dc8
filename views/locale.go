package views

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
)

// labels are the user-facing strings of one locale.
type labels struct {
	tag          language.Tag
	months       [12]string
	editedOn     string // followed by date and time
	at           string
	loading      string
	previous     string
	next         string
	loadMore     string
	previewMode  string
	exitPreview  string
	notFound     string
	serverError  string
	backHome     string
	noPosts      string
	readingLabel string
}

var locales = []*labels{
	{
		tag:          language.BrazilianPortuguese,
		months:       [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
		editedOn:     "* editado em",
		at:           "às",
		loading:      "Carregando...",
		previous:     "Post anterior",
		next:         "Próximo post",
		loadMore:     "Carregar mais posts",
		previewMode:  "Modo de pré-visualização",
		exitPreview:  "Sair do modo de pré-visualização",
		notFound:     "Página não encontrada",
		serverError:  "Algo deu errado",
		backHome:     "Voltar para o início",
		noPosts:      "Nenhum post publicado.",
		readingLabel: "Tempo de leitura",
	},
	{
		tag:          language.English,
		months:       [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		editedOn:     "* edited on",
		at:           "at",
		loading:      "Loading...",
		previous:     "Previous post",
		next:         "Next post",
		loadMore:     "Load more posts",
		previewMode:  "Preview mode",
		exitPreview:  "Exit preview mode",
		notFound:     "Page not found",
		serverError:  "Something went wrong",
		backHome:     "Back to home",
		noPosts:      "No posts published yet.",
		readingLabel: "Reading time",
	},
}

var matcher = language.NewMatcher([]language.Tag{locales[0].tag, locales[1].tag})

// localeFor picks the closest supported locale for a BCP 47 tag, falling
// back to Brazilian Portuguese.
func localeFor(tag string) *labels {
	t, err := language.Parse(tag)
	if err != nil {
		return locales[0]
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return locales[0]
	}
	return locales[idx]
}

// formatDate renders t as "dd MMM yyyy".
func (l *labels) formatDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), l.months[t.Month()-1], t.Year())
}

// formatEdited renders the edited marker for t.
func (l *labels) formatEdited(t time.Time) string {
	return fmt.Sprintf("%s %s, %s %02d:%02d", l.editedOn, l.formatDate(t), l.at, t.Hour(), t.Minute())
}

// zone loads the display time zone, falling back to UTC.
func zone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
