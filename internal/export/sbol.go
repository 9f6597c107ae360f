package export

import (
	"encoding/xml"
	"io"
	"sort"

	"tracecore/pkg/domain"
)

// SBOLDocument accumulates the SBOL view of a trace: one component
// definition per item, one activity per non-job generator, and usage edges
// from activities to the components they consumed.
//
// Job generators and measurement-derived files are not represented; that
// mapping is an acknowledged gap in the SBOL export, not an oversight here.
type SBOLDocument struct {
	namespace  string
	components map[string]*SBOLComponent
	activities map[string]*SBOLActivity
}

// SBOLComponent is a component definition derived from an item entity.
type SBOLComponent struct {
	Name           string
	Identity       string
	WasGeneratedBy string
}

// SBOLActivity is a provenance activity derived from an operation.
type SBOLActivity struct {
	Name     string
	Identity string
	Usages   []SBOLUsage
}

// SBOLUsage records that an activity used a component.
type SBOLUsage struct {
	Name   string
	Entity string
}

// SBOL builds the SBOL document for the trace under the given namespace.
func SBOL(trace *domain.Trace, namespace string) *SBOLDocument {
	doc := &SBOLDocument{
		namespace:  namespace,
		components: make(map[string]*SBOLComponent),
		activities: make(map[string]*SBOLActivity),
	}
	trace.Apply(&sbolVisitor{doc: doc})
	return doc
}

// Components returns the component definitions in name order.
func (d *SBOLDocument) Components() []*SBOLComponent {
	names := make([]string, 0, len(d.components))
	for name := range d.components {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*SBOLComponent, 0, len(names))
	for _, name := range names {
		out = append(out, d.components[name])
	}
	return out
}

// Activities returns the activities in name order.
func (d *SBOLDocument) Activities() []*SBOLActivity {
	names := make([]string, 0, len(d.activities))
	for name := range d.activities {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*SBOLActivity, 0, len(names))
	for _, name := range names {
		out = append(out, d.activities[name])
	}
	return out
}

func (d *SBOLDocument) identity(name string) string {
	return d.namespace + "/" + name
}

func (d *SBOLDocument) component(item *domain.Item) *SBOLComponent {
	name := "item_" + item.ID
	if c, ok := d.components[name]; ok {
		return c
	}
	c := &SBOLComponent{Name: name, Identity: d.identity(name)}
	d.components[name] = c
	return c
}

func (d *SBOLDocument) activity(op *domain.Operation) *SBOLActivity {
	name := "operation_" + op.ID
	if a, ok := d.activities[name]; ok {
		return a
	}
	a := &SBOLActivity{Name: name, Identity: d.identity(name)}
	d.activities[name] = a
	return a
}

type sbolVisitor struct {
	domain.NoopVisitor
	doc *SBOLDocument
}

func (v *sbolVisitor) VisitItem(item *domain.Item) {
	component := v.doc.component(item)
	gen, ok := item.Generator().(*domain.Operation)
	if !ok {
		return
	}
	component.WasGeneratedBy = v.doc.activity(gen).Identity
}

func (v *sbolVisitor) VisitOperation(op *domain.Operation) {
	activity := v.doc.activity(op)
	for _, in := range op.InputItems() {
		item, ok := in.Item.(*domain.Item)
		if !ok {
			continue
		}
		component := v.doc.component(item)
		activity.Usages = append(activity.Usages, SBOLUsage{
			Name:   "usage_" + item.ID,
			Entity: component.Identity,
		})
	}
}

// RDF serialization types. The document is written as RDF/XML with the SBOL
// and PROV-O terms the downstream tooling reads.

type rdfDocument struct {
	XMLName    xml.Name       `xml:"rdf:RDF"`
	XMLNSRDF   string         `xml:"xmlns:rdf,attr"`
	XMLNSSBOL  string         `xml:"xmlns:sbol,attr"`
	XMLNSProv  string         `xml:"xmlns:prov,attr"`
	Components []rdfComponent `xml:"sbol:ComponentDefinition"`
	Activities []rdfActivity  `xml:"prov:Activity"`
}

type rdfComponent struct {
	About          string       `xml:"rdf:about,attr"`
	DisplayID      string       `xml:"sbol:displayId"`
	WasGeneratedBy *rdfResource `xml:"prov:wasGeneratedBy,omitempty"`
}

type rdfActivity struct {
	About     string     `xml:"rdf:about,attr"`
	DisplayID string     `xml:"sbol:displayId"`
	Usages    []rdfUsage `xml:"prov:qualifiedUsage>prov:Usage"`
}

type rdfUsage struct {
	DisplayID string      `xml:"sbol:displayId"`
	Entity    rdfResource `xml:"prov:entity"`
}

type rdfResource struct {
	Resource string `xml:"rdf:resource,attr"`
}

// WriteRDF writes the document as RDF/XML.
func (d *SBOLDocument) WriteRDF(w io.Writer) error {
	doc := rdfDocument{
		XMLNSRDF:  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		XMLNSSBOL: "http://sbols.org/v2#",
		XMLNSProv: "http://www.w3.org/ns/prov#",
	}
	for _, c := range d.Components() {
		rc := rdfComponent{About: c.Identity, DisplayID: c.Name}
		if c.WasGeneratedBy != "" {
			rc.WasGeneratedBy = &rdfResource{Resource: c.WasGeneratedBy}
		}
		doc.Components = append(doc.Components, rc)
	}
	for _, a := range d.Activities() {
		ra := rdfActivity{About: a.Identity, DisplayID: a.Name}
		for _, u := range a.Usages {
			ra.Usages = append(ra.Usages, rdfUsage{
				DisplayID: u.Name,
				Entity:    rdfResource{Resource: u.Entity},
			})
		}
		doc.Activities = append(doc.Activities, ra)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
