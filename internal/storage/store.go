package storage

// Store 运行历史的持久化接口
// Store is the persistence interface for run history.
type Store interface {
	CreateRun(meta RunMeta) error
	CompleteRun(meta RunMeta) error
	LoadRun(id string) (RunMeta, error)
	ListRuns() ([]RunMeta, error)

	SaveRecords(runID string, records []RecordRow) error
	LoadRecords(runID string) ([]RecordRow, error)

	SaveFigures(runID string, figures []FigureRow) error
	LoadFigures(runID string) ([]FigureRow, error)

	Close() error
}

// RunMeta is one run's metadata row.
type RunMeta struct {
	ID           string
	Dataset      string
	Model        string
	Goal         string
	Plan         string
	Solution     string
	Iterations   int
	LimitReached bool
	Status       string // running | completed | failed
	ArtifactsDir string
	LogPath      string
	CreatedAt    string
	UpdatedAt    string
}

// RecordRow is the stored form of one execution record. Figures are kept
// in their own rows; the count here is denormalized for listings.
type RecordRow struct {
	RunID      string
	Index      int
	Code       string
	Stdout     string
	Error      string
	Success    bool
	DurationMS int64
	Figures    int
}

// FigureRow is one captured figure: its session-wide sequence number, the
// record that produced it, and where the PNG landed in the artifacts dir.
type FigureRow struct {
	RunID       string
	RecordIndex int
	Seq         int
	Path        string
}
