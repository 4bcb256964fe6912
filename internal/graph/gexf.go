package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gnomegl/gitgraph/internal/models"
)

type gexfFile struct {
	XMLName xml.Name  `xml:"gexf"`
	XMLNS   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	LastModified string `xml:"lastmodifieddate,attr"`
	Creator      string `xml:"creator"`
	Description  string `xml:"description"`
}

type gexfGraph struct {
	DefaultEdgeType  string               `xml:"defaultedgetype,attr"`
	Mode             string               `xml:"mode,attr"`
	AttributeClasses []gexfAttributeClass `xml:"attributes"`
	Nodes            gexfNodes            `xml:"nodes"`
	Edges            gexfEdges            `xml:"edges"`
}

type gexfAttributeClass struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNodes struct {
	Nodes []gexfNode `xml:"node"`
}

type gexfNode struct {
	ID        string        `xml:"id,attr"`
	Label     string        `xml:"label,attr"`
	AttValues gexfAttValues `xml:"attvalues"`
}

type gexfAttValues struct {
	AttValues []gexfAttValue `xml:"attvalue"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfEdges struct {
	Edges []gexfEdge `xml:"edge"`
}

type gexfEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
	Label  string `xml:"label,attr,omitempty"`
}

// gexfID keeps users and repositories in separate id spaces; a login can
// never contain a slash but a bare owner name could collide with one.
func gexfID(label, key string) string {
	if label == models.RepositoryLabel {
		return "repo:" + key
	}
	return "user:" + key
}

// WriteGEXF renders the snapshot as a bipartite GEXF 1.3 document with a
// kind attribute separating users from repositories.
func WriteGEXF(w io.Writer, snap *Snapshot, description string) error {
	nodes := make([]gexfNode, 0, len(snap.Nodes))
	for _, r := range snap.Repositories() {
		nodes = append(nodes, gexfNode{
			ID:    gexfID(models.RepositoryLabel, r.FullName),
			Label: r.FullName,
			AttValues: gexfAttValues{AttValues: []gexfAttValue{
				{For: "0", Value: "repository"},
				{For: "1", Value: r.Language},
				{For: "2", Value: strconv.Itoa(r.StargazersCount)},
				{For: "3", Value: strconv.Itoa(r.ForksCount)},
			}},
		})
	}
	for _, u := range snap.Users() {
		label := u.Login
		if u.Name != "" {
			label = u.Name + " (" + u.Login + ")"
		}
		nodes = append(nodes, gexfNode{
			ID:    gexfID(models.UserLabel, u.Login),
			Label: label,
			AttValues: gexfAttValues{AttValues: []gexfAttValue{
				{For: "0", Value: "user"},
			}},
		})
	}

	stars := snap.Stars()
	edges := make([]gexfEdge, 0, len(stars))
	for i, e := range stars {
		edges = append(edges, gexfEdge{
			ID:     fmt.Sprintf("e%d", i),
			Source: gexfID(models.UserLabel, e.User),
			Target: gexfID(models.RepositoryLabel, e.Repository),
			Label:  models.StarsLabel,
		})
	}

	doc := gexfFile{
		XMLNS:   "http://gexf.net/1.3",
		Version: "1.3",
		Meta: gexfMeta{
			LastModified: time.Now().Format("2006-01-02"),
			Creator:      "gitgraph",
			Description:  description,
		},
		Graph: gexfGraph{
			DefaultEdgeType: "directed",
			Mode:            "static",
			AttributeClasses: []gexfAttributeClass{
				{
					Class: "node",
					Attributes: []gexfAttribute{
						{ID: "0", Title: "kind", Type: "string"},
						{ID: "1", Title: "language", Type: "string"},
						{ID: "2", Title: "stargazers_count", Type: "integer"},
						{ID: "3", Title: "forks_count", Type: "integer"},
					},
				},
			},
			Nodes: gexfNodes{Nodes: nodes},
			Edges: gexfEdges{Edges: edges},
		},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	return encoder.Encode(doc)
}
