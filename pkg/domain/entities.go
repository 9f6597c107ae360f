// Package domain defines the provenance entities, activities, and rule
// evaluation primitives used by tracecore.
//
// The model follows PROV-DM: activities (plans, operations, jobs) generate
// entities (items, collections, parts, files), and each entity records the
// activity that generated it plus the set of source entities it was derived
// from. No attempt is made to model the full laboratory inventory schema;
// only the provenance-relevant slice of each record is kept.
package domain

import (
	"path"
	"sort"
	"strconv"
	"strings"
)

// EntityKind identifies the kind of a provenance entity.
type EntityKind string

// Entity kinds serialized into the "type" field of exported documents.
const (
	// KindItem identifies a standalone inventory item.
	KindItem EntityKind = "item"
	// KindCollection identifies a well-plate collection of parts.
	KindCollection EntityKind = "collection"
	// KindPart identifies a single well of a collection.
	KindPart EntityKind = "part"
	// KindFile identifies an uploaded data file.
	KindFile EntityKind = "file"
)

// Severity captures rule outcomes.
type Severity string

// Severity levels ordered from most to least serious.
const (
	// SeverityBlock marks a violation that invalidates the trace.
	SeverityBlock Severity = "block"
	// SeverityWarn marks a suspicious condition that allows export.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Sample is the provenance-relevant slice of an inventory sample record.
type Sample struct {
	ID   string
	Name string
}

// ObjectType is the provenance-relevant slice of an inventory container type.
type ObjectType struct {
	ID   string
	Name string
}

// OperationType is the provenance-relevant slice of a protocol definition.
type OperationType struct {
	ID       string
	Category string
	Name     string
}

// Attributes holds the free-form key-value annotations copied from upstream
// data associations. Empty values are dropped on insert so that presence of
// a key always implies a usable value.
type Attributes map[string]any

// Add merges all non-empty key-value pairs into the attribute map.
func (a Attributes) Add(pairs map[string]any) {
	for key, value := range pairs {
		if isEmptyValue(value) {
			continue
		}
		a[key] = value
	}
}

// Get returns the value for key, or nil when absent.
func (a Attributes) Get(key string) any {
	return a[key]
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

// Entity is the provenance view common to items, collections, parts, and
// files: the generating activity and the set of entities it was derived
// from.
type Entity interface {
	// EntityID returns the trace-unique identifier of the entity.
	EntityID() string
	// Kind returns the entity kind.
	Kind() EntityKind
	// Generator returns the generating activity, or nil when unknown.
	Generator() Activity
	// SetGenerator records the generating activity, replacing any prior one.
	SetGenerator(Activity)
	// Sources returns the source entities in ID order.
	Sources() []Entity
	// SourceIDs returns the IDs of the source entities in ID order.
	SourceIDs() []string
	// AddSource records a derivation edge from the given source entity.
	// Duplicate sources are ignored.
	AddSource(Entity)
	// RemoveSource drops the source with the given ID if present.
	RemoveSource(id string)
	// GeneratedBy reports whether the generator is the given activity.
	GeneratedBy(Activity) bool
	// Missing reports whether the entity stands in for a record that could
	// not be fetched.
	Missing() bool
}

// provenance carries the generator and source set shared by all entities.
type provenance struct {
	generator Activity
	sources   map[string]Entity
}

func (p *provenance) Generator() Activity     { return p.generator }
func (p *provenance) SetGenerator(a Activity) { p.generator = a }

func (p *provenance) AddSource(entity Entity) {
	if entity == nil {
		return
	}
	if p.sources == nil {
		p.sources = make(map[string]Entity)
	}
	p.sources[entity.EntityID()] = entity
}

func (p *provenance) RemoveSource(id string) {
	delete(p.sources, id)
}

func (p *provenance) Sources() []Entity {
	out := make([]Entity, 0, len(p.sources))
	for _, src := range p.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessID(out[i].EntityID(), out[j].EntityID())
	})
	return out
}

func (p *provenance) SourceIDs() []string {
	out := make([]string, 0, len(p.sources))
	for id := range p.sources {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

func (p *provenance) GeneratedBy(activity Activity) bool {
	if p.generator == nil || activity == nil {
		return false
	}
	if p.generator.IsJob() != activity.IsJob() {
		return false
	}
	return p.generator.ActivityID() == activity.ActivityID()
}

func (p *provenance) Missing() bool { return false }

// lessID orders record identifiers numerically when both are numeric, and
// lexically otherwise, so sorted output is stable across runs.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// Item is a standalone inventory item with a sample and a container type.
type Item struct {
	provenance
	ID         string
	Sample     Sample
	ObjectType ObjectType
	Attributes Attributes
}

// NewItem constructs an item entity.
func NewItem(id string, sample Sample, objectType ObjectType) *Item {
	return &Item{ID: id, Sample: sample, ObjectType: objectType, Attributes: Attributes{}}
}

func (it *Item) EntityID() string { return it.ID }
func (it *Item) Kind() EntityKind { return KindItem }

// Collection is a well-plate item whose contents are addressed per well.
// It has a container type but no sample of its own; samples live on parts.
type Collection struct {
	provenance
	ID         string
	ObjectType ObjectType
	Attributes Attributes

	parts map[string]*Part // keyed by canonical well label
}

// NewCollection constructs a collection entity with no parts.
func NewCollection(id string, objectType ObjectType) *Collection {
	return &Collection{ID: id, ObjectType: objectType, Attributes: Attributes{}, parts: make(map[string]*Part)}
}

func (c *Collection) EntityID() string { return c.ID }
func (c *Collection) Kind() EntityKind { return KindCollection }

// AddPart registers a part under its well, replacing any previous part at
// that well.
func (c *Collection) AddPart(part *Part) {
	c.parts[part.Well()] = part
}

// Part returns the part at the given well, or nil.
func (c *Collection) Part(well string) *Part {
	return c.parts[well]
}

// Parts returns the parts of the collection in well order.
func (c *Collection) Parts() []*Part {
	wells := make([]string, 0, len(c.parts))
	for well := range c.parts {
		wells = append(wells, well)
	}
	sort.Slice(wells, func(i, j int) bool { return lessWell(wells[i], wells[j]) })
	out := make([]*Part, 0, len(wells))
	for _, well := range wells {
		out = append(out, c.parts[well])
	}
	return out
}

// HasParts reports whether any part has been registered.
func (c *Collection) HasParts() bool { return len(c.parts) > 0 }

// lessWell orders well labels row-major: by row letter, then numeric column.
func lessWell(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || a[0] != b[0] {
		return a < b
	}
	na, errA := strconv.Atoi(a[1:])
	nb, errB := strconv.Atoi(b[1:])
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// Part is a single well of a collection. Its reference string has the form
// "<collection_id>/<well>"; its entity ID is the part's own item ID when the
// upstream system assigned one, and the reference string otherwise.
type Part struct {
	provenance
	ID         string
	Ref        string
	Sample     *Sample
	ObjectType *ObjectType
	Collection *Collection
	Attributes Attributes
}

// NewPart constructs a part entity and registers it with its collection.
func NewPart(id, ref string, collection *Collection) *Part {
	part := &Part{ID: id, Ref: ref, Collection: collection, Attributes: Attributes{}}
	collection.AddPart(part)
	return part
}

func (p *Part) EntityID() string { return p.ID }
func (p *Part) Kind() EntityKind { return KindPart }

// Well returns the well label component of the part reference.
func (p *Part) Well() string {
	if i := strings.IndexByte(p.Ref, '/'); i >= 0 {
		return p.Ref[i+1:]
	}
	return p.Ref
}

// FileType classifies a file by its name extension.
type FileType string

// File types recognized by the exporters. Files with other extensions have
// no type.
const (
	FileTypeCSV FileType = "CSV"
	FileTypeFCS FileType = "FCS"
	FileTypeXML FileType = "XML"
)

// FileTypeOf returns the file type for a file name, or "" when the
// extension is not recognized.
func FileTypeOf(name string) FileType {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return FileTypeCSV
	case ".fcs":
		return FileTypeFCS
	case ".xml":
		return FileTypeXML
	}
	return ""
}

// FileEntity is the behavior shared by uploaded and externally stored
// files.
type FileEntity interface {
	Entity
	// FileName returns the file name, including any applied prefix.
	FileName() string
	// Rename replaces the file name.
	Rename(name string)
	// FileType returns the classification derived from the name extension.
	FileType() FileType
	// External reports whether the file is stored outside the inventory
	// system.
	External() bool
}

type fileCommon struct {
	provenance
	id       string
	name     string
	CheckSum string
}

func (f *fileCommon) EntityID() string   { return f.id }
func (f *fileCommon) Kind() EntityKind   { return KindFile }
func (f *fileCommon) FileName() string   { return f.name }
func (f *fileCommon) Rename(name string) { f.name = name }
func (f *fileCommon) FileType() FileType { return FileTypeOf(f.name) }

// File is an uploaded data file generated during a job.
type File struct {
	fileCommon
	UploadID string
	Size     int64
	Job      *Job
}

// NewFile constructs a file entity. IDs are assigned by the caller; the
// graph factory allocates them sequentially per trace.
func NewFile(id, name, uploadID string, size int64, job *Job) *File {
	return &File{fileCommon: fileCommon{id: id, name: name}, UploadID: uploadID, Size: size, Job: job}
}

func (f *File) External() bool { return false }

// ExternalFile is a file stored outside the inventory system, referenced by
// name only.
type ExternalFile struct {
	fileCommon
}

// NewExternalFile constructs an external file entity.
func NewExternalFile(id, name string) *ExternalFile {
	return &ExternalFile{fileCommon: fileCommon{id: id, name: name}}
}

func (f *ExternalFile) External() bool { return true }

// MissingEntity stands in for a record that could not be fetched from the
// upstream system. It participates in derivation edges so gaps stay visible
// in the exported graph.
type MissingEntity struct {
	provenance
	ID string
}

// NewMissingEntity constructs a placeholder entity for an unfetchable
// record.
func NewMissingEntity(id string) *MissingEntity {
	return &MissingEntity{ID: id}
}

func (m *MissingEntity) EntityID() string { return m.ID }
func (m *MissingEntity) Kind() EntityKind { return KindItem }
func (m *MissingEntity) Missing() bool    { return true }
