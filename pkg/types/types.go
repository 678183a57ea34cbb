package types

// BackendKind identifies which storage backend implementation a database
// uses.
type BackendKind string

const (
	BackendNull     BackendKind = "null"
	BackendMap      BackendKind = "map"
	BackendLogStore BackendKind = "log_store"
	BackendBTree    BackendKind = "btree_store"
)

// Persistent reports whether databases using this backend kind keep data
// on disk across process restarts.
func (k BackendKind) Persistent() bool {
	return k == BackendLogStore || k == BackendBTree
}

// AttachConfig carries everything needed to open or create a database, as
// accepted by the registry's attach operation (spec §4.1) and by the
// per-database section of a kvctl manifest (spec §6.4).
type AttachConfig struct {
	Name           string      `yaml:"name"`
	Path           string      `yaml:"path"`
	Backend        BackendKind `yaml:"backend"`
	ComparatorName string      `yaml:"comparatorName,omitempty"`
	NoOverwrite    bool        `yaml:"noOverwrite,omitempty"`
}

// DatabaseInfo is the (name, id) pair returned by list operations (§4.1,
// §4.3.1), ordered by registry insertion order.
type DatabaseInfo struct {
	Name string
	ID   uint64
}

// KV is a single key/value pair, used by put_multi/put_packed request
// bodies and list_keyvals responses.
type KV struct {
	Key   []byte
	Value []byte
}

// MigrationFlag controls whether keys selected by a migration scope are
// left in place on the source (KeepOriginal) or erased after a successful
// destination put (RemoveOriginal). See spec §4.4.
type MigrationFlag int

const (
	KeepOriginal MigrationFlag = iota
	RemoveOriginal
)

func (f MigrationFlag) String() string {
	if f == RemoveOriginal {
		return "remove-original"
	}
	return "keep-original"
}

// Fileset metadata keys required/optional on a FilesetDescriptor (spec
// §4.5, §6.3).
const (
	MetaDatabaseType        = "database_type"
	MetaDatabaseName        = "database_name"
	MetaComparatorFunction  = "comparator_function"
	MetaNoOverwrite         = "no_overwrite"
	MetaTransferID          = "xfer_id"
)

// FilesetDescriptor names the on-disk artifacts of a persistent database
// plus the metadata a destination provider needs to re-attach it (spec
// §4.5, §6.3, glossary "Fileset"). Backends that cannot be relocated as a
// set of files (in-memory backends) return nil from CreateFileset.
type FilesetDescriptor struct {
	Root     string
	Files    []string
	Metadata map[string]string
}

// ProviderConfig is the per-provider configuration of spec §6.4, loaded
// from YAML by pkg/config.
type ProviderConfig struct {
	ProviderID            uint64 `yaml:"providerId"`
	BindAddr              string `yaml:"bindAddr"`
	MetricsAddr           string `yaml:"metricsAddr"`
	HealthAddr            string `yaml:"healthAddr"`
	LogLevel              string `yaml:"logLevel"`
	LogJSON               bool   `yaml:"logJSON"`
	ProgressThreadEnabled bool   `yaml:"progressThreadEnabled"`
	HandlerPoolSize       int    `yaml:"handlerPoolSize"`
}

// DefaultProviderConfig mirrors the defaults a freshly bootstrapped
// provider process would use.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		BindAddr:              ":7070",
		MetricsAddr:           ":9090",
		HealthAddr:            ":9091",
		LogLevel:              "info",
		LogJSON:               true,
		ProgressThreadEnabled: true,
		HandlerPoolSize:       32,
	}
}

// DatabaseManifest is one YAML document of a kvctl manifest file (spec
// §6.4's "apply" surface), mirroring the reference server's generic
// apiVersion/kind resource envelope.
type DatabaseManifest struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Spec       AttachConfig `yaml:"spec"`
}

// MigrationBatchSize is the implementation-defined constant documented in
// spec §4.4 for migrate_keys_prefixed/migrate_all_keys pagination.
const MigrationBatchSize = 64

// MigrationConcurrency bounds how many destination puts a KeepOriginal
// batch transfers in flight at once. RemoveOriginal batches never use
// this: erasing the source requires knowing exactly which key failed
// and leaving every key after it untouched, which only a sequential
// transfer can guarantee.
const MigrationConcurrency = 8
