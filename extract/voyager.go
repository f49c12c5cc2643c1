package extract

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/use-agent/profilr/models"
)

// ErrNoProfileEntity is returned when a top-card response carries no entity
// for the requested profile.
var ErrNoProfileEntity = errors.New("no profile entity in response")

// The site's internal profile API answers in a normalized form: every
// entity sits in a flat included[] list and is told apart by its URN.
type voyagerResponse struct {
	Included []voyagerEntity `json:"included"`
}

type voyagerEntity struct {
	EntityURN string `json:"entityUrn"`

	// top card
	PublicIdentifier string `json:"publicIdentifier"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Headline         string `json:"headline"`
	LocationName     string `json:"locationName"`
	Actions          struct {
		Overflow []struct {
			Report struct {
				AuthorProfileID string `json:"authorProfileId"`
			} `json:"report"`
		} `json:"overflowActions"`
	} `json:"profileStatefulProfileActions"`

	// profile cards
	TopComponents []voyagerComponent `json:"topComponents"`
}

type voyagerComponent struct {
	Components struct {
		Text *struct {
			Text voyagerText `json:"text"`
		} `json:"textComponent"`
		FixedList *struct {
			Components []voyagerComponent `json:"components"`
		} `json:"fixedListComponent"`
		Entity *voyagerEntityComponent `json:"entityComponent"`
	} `json:"components"`
}

type voyagerEntityComponent struct {
	Title         voyagerText `json:"title"`
	Subtitle      voyagerText `json:"subtitle"`
	Caption       voyagerText `json:"caption"`
	Metadata      voyagerText `json:"metadata"`
	SubComponents struct {
		Components []voyagerComponent `json:"components"`
	} `json:"subComponents"`
}

type voyagerText struct {
	Text string `json:"text"`
}

// TopCard is the identity block of the internal profile API.
type TopCard struct {
	Identity models.Identity

	// ProfileID keys the profile-cards request.
	ProfileID string
}

// ParseTopCard reads the identity block for handle from a top-card response.
// When no entity carries handle, the first entity with a public identifier
// is used.
func ParseTopCard(raw []byte, handle string) (*TopCard, error) {
	var resp voyagerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode top card: %w", err)
	}

	var found *voyagerEntity
	for i := range resp.Included {
		e := &resp.Included[i]
		if e.PublicIdentifier == "" {
			continue
		}
		if strings.EqualFold(e.PublicIdentifier, handle) {
			found = e
			break
		}
		if found == nil {
			found = e
		}
	}
	if found == nil {
		return nil, ErrNoProfileEntity
	}

	card := &TopCard{
		Identity: models.Identity{
			Name:       models.Str(strings.TrimSpace(found.FirstName + " " + found.LastName)),
			Headline:   models.Str(strings.TrimSpace(found.Headline)),
			Location:   models.Str(strings.TrimSpace(found.LocationName)),
			ProfileURL: models.Str("https://www.linkedin.com/in/" + found.PublicIdentifier + "/"),
		},
	}
	for _, a := range found.Actions.Overflow {
		if id := a.Report.AuthorProfileID; id != "" {
			card.ProfileID = id
			break
		}
	}
	return card, nil
}

// ProfileCards holds the sections read from a profile-cards response.
type ProfileCards struct {
	About       *string
	Experiences []models.Experience
	Education   []models.Education
}

// ParseProfileCards reads about, experience and education from a
// profile-cards response, with the same caps as the page extractors.
// Missing cards yield nil and empty lists.
func ParseProfileCards(raw []byte) (*ProfileCards, error) {
	var resp voyagerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode profile cards: %w", err)
	}

	cards := &ProfileCards{
		Experiences: []models.Experience{},
		Education:   []models.Education{},
	}

	if about := findCard(resp.Included, "ABOUT", ""); about != nil {
		if c := about.body(); c != nil && c.Components.Text != nil {
			cards.About = models.Str(strings.TrimSpace(c.Components.Text.Text.Text))
		}
	}

	if exp := findCard(resp.Included, "EXPERIENCE", "VOLUNTEERING_EXPERIENCE"); exp != nil {
		for _, e := range exp.entries(MaxExperiences) {
			cards.Experiences = append(cards.Experiences, models.Experience{
				Title:       textOf(e.Title),
				Company:     textOf(e.Subtitle),
				Duration:    textOf(e.Caption),
				Location:    textOf(e.Metadata),
				Description: e.description(),
			})
		}
	}

	if edu := findCard(resp.Included, "EDUCATION", ""); edu != nil {
		for _, e := range edu.entries(MaxEducation) {
			cards.Education = append(cards.Education, models.Education{
				School: textOf(e.Title),
				Degree: textOf(e.Subtitle),
				Years:  textOf(e.Caption),
			})
		}
	}
	return cards, nil
}

// findCard returns the first entity whose URN contains kind and not exclude.
func findCard(included []voyagerEntity, kind, exclude string) *voyagerEntity {
	for i := range included {
		urn := included[i].EntityURN
		if exclude != "" && strings.Contains(urn, exclude) {
			continue
		}
		if strings.Contains(urn, kind) {
			return &included[i]
		}
	}
	return nil
}

// body is the card's content component; the first one is its header.
func (e *voyagerEntity) body() *voyagerComponent {
	if len(e.TopComponents) < 2 {
		return nil
	}
	return &e.TopComponents[1]
}

func (e *voyagerEntity) entries(limit int) []*voyagerEntityComponent {
	b := e.body()
	if b == nil || b.Components.FixedList == nil {
		return nil
	}
	var out []*voyagerEntityComponent
	for _, c := range b.Components.FixedList.Components {
		if len(out) == limit {
			break
		}
		if c.Components.Entity != nil {
			out = append(out, c.Components.Entity)
		}
	}
	return out
}

// description is the text of the entry's first sub-list item.
func (e *voyagerEntityComponent) description() *string {
	subs := e.SubComponents.Components
	if len(subs) == 0 || subs[0].Components.FixedList == nil {
		return nil
	}
	list := subs[0].Components.FixedList.Components
	if len(list) == 0 || list[0].Components.Text == nil {
		return nil
	}
	return textOf(list[0].Components.Text.Text)
}

func textOf(t voyagerText) *string {
	return models.Str(strings.TrimSpace(t.Text))
}

// Record merges a top card and its profile cards into one record.
func (c *TopCard) Record(cards *ProfileCards) *models.ProfileRecord {
	rec := models.NewProfileRecord()
	rec.SetIdentity(c.Identity)
	if cards != nil {
		rec.About = cards.About
		rec.Experiences = cards.Experiences
		rec.Education = cards.Education
		if rec.Location == nil && len(cards.Experiences) > 0 {
			rec.Location = cards.Experiences[0].Location
		}
	}
	rec.Normalize()
	return rec
}
