package cache

// Keyer builds cache keys.
type Keyer interface {
	// SnapshotKey identifies a decoded snapshot by its source (a file path
	// or a stored snapshot name) and content hash.
	SnapshotKey(source, contentHash string) string

	// LayoutKey identifies an exported layout of a snapshot.
	LayoutKey(snapshotHash string, opts LayoutKeyOpts) string

	// ArtifactKey identifies one rendered output format of a layout.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// LayoutKeyOpts are the inputs that change node positions or visibility.
type LayoutKeyOpts struct {
	Width        float64 `json:"w"`
	Height       float64 `json:"h"`
	CommunityKey string  `json:"ck,omitempty"`
	Periphery    float64 `json:"tp,omitempty"`
	Core         float64 `json:"tc,omitempty"`
	Thresholds   bool    `json:"th,omitempty"` // explicit thresholds set
	Seed         uint64  `json:"seed"`
	Engine       string  `json:"eng,omitempty"` // hash of engine options
	Filters      string  `json:"f,omitempty"`   // hash of the filter state
}

// ArtifactKeyOpts are the inputs that change rendered output.
type ArtifactKeyOpts struct {
	Format     string  `json:"fmt"`
	NodeRadius float64 `json:"nr,omitempty"`
	Labels     bool    `json:"lbl,omitempty"`
	NoBands    bool    `json:"nb,omitempty"`
}

// DefaultKeyer hashes key options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SnapshotKey returns "snapshot:<hash>".
func (DefaultKeyer) SnapshotKey(source, contentHash string) string {
	return hashKey("snapshot", source, contentHash)
}

// LayoutKey returns "layout:<hash>".
func (DefaultKeyer) LayoutKey(snapshotHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", snapshotHash, opts)
}

// ArtifactKey returns "artifact:<hash>".
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}

var _ Keyer = DefaultKeyer{}
