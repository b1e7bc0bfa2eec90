package field

import (
	"sort"
	"strings"
)

// Cluster is a named topic with the keywords that signal it.
type Cluster struct {
	Name     string
	Keywords []string
}

// Dictionary maps headline text to topic clusters. Cluster order is stable
// and determines the order of detected hot topics.
type Dictionary struct {
	clusters []Cluster
	crisis   []string
}

// NewDictionary creates a Dictionary with the default topic clusters and
// crisis keywords.
func NewDictionary() *Dictionary {
	d := &Dictionary{}
	d.loadDefaults()
	return d
}

// Clusters returns a copy of the configured clusters in order.
func (d *Dictionary) Clusters() []Cluster {
	out := make([]Cluster, len(d.clusters))
	for i, c := range d.clusters {
		out[i] = Cluster{Name: c.Name, Keywords: append([]string(nil), c.Keywords...)}
	}
	return out
}

// AllTopics returns the sorted cluster names.
func (d *Dictionary) AllTopics() []string {
	names := make([]string, len(d.clusters))
	for i, c := range d.clusters {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

// HotTopics returns, in cluster order, every cluster with at least one
// keyword occurring as a substring of the joined lowercase headlines.
func (d *Dictionary) HotTopics(headlines []string) []string {
	text := strings.ToLower(strings.Join(headlines, " "))
	found := make([]string, 0)
	if text == "" {
		return found
	}
	for _, c := range d.clusters {
		for _, kw := range c.Keywords {
			if strings.Contains(text, kw) {
				found = append(found, c.Name)
				break
			}
		}
	}
	return found
}

// CrisisLevel estimates crisis intensity on a 0-10 scale as the share of
// headlines mentioning a crisis keyword, rounded to one decimal.
func (d *Dictionary) CrisisLevel(headlines []string) float64 {
	if len(headlines) == 0 {
		return 0
	}
	hits := 0
	for _, h := range headlines {
		lower := strings.ToLower(h)
		for _, kw := range d.crisis {
			if strings.Contains(lower, kw) {
				hits++
				break
			}
		}
	}
	level := roundTo(float64(hits)/float64(len(headlines))*10, 1)
	if level > 10 {
		level = 10
	}
	return level
}

// add registers a cluster with its keywords.
func (d *Dictionary) add(name string, keywords ...string) {
	lower := make([]string, len(keywords))
	for i, kw := range keywords {
		lower[i] = strings.ToLower(kw)
	}
	d.clusters = append(d.clusters, Cluster{Name: name, Keywords: lower})
}

// loadDefaults populates the dictionary with the world-news clusters.
func (d *Dictionary) loadDefaults() {
	d.add("ai_tech", "ai", "artificial intelligence", "openai", "chatgpt", "gemini",
		"quantum", "neural", "model", "algorithm", "data")
	d.add("geopolitics", "war", "nato", "ukraine", "russia", "china", "taiwan",
		"sanctions", "missile", "troops", "ceasefire")
	d.add("climate", "climate", "carbon", "renewable", "solar", "flood",
		"wildfire", "emissions", "green", "energy transition")
	d.add("economy", "inflation", "recession", "fed", "interest rate", "gdp",
		"market", "stock", "dollar", "trade", "tariff")
	d.add("politics_us", "trump", "biden", "congress", "senate", "white house",
		"election", "democrat", "republican", "administration")
	d.add("crisis", "crisis", "emergency", "collapse", "protest", "riot",
		"coup", "conflict", "humanitarian", "refugee")
	d.add("health", "pandemic", "virus", "vaccine", "who", "outbreak",
		"health", "hospital", "disease", "treatment")
	d.add("surveillance", "surveillance", "privacy", "data breach", "hack",
		"leak", "espionage", "intelligence", "fbi", "cia")

	d.crisis = []string{"war", "crisis", "collapse", "emergency", "attack",
		"killed", "conflict", "explosion", "threat", "coup"}
}
