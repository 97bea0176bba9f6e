package config

const (
	KeyStoreBackend       = "store_backend"
	KeyDatabaseDSN        = "database_dsn"
	KeyRedisAddr          = "redis_addr"
	KeyRedisPassword      = "redis_password"
	KeyRedisDB            = "redis_db"
	KeyKeyPrefix          = "key_prefix"
	KeyNonceBackend       = "nonce_backend"
	KeyDatastoreProject   = "datastore_project"
	KeyDatastoreNamespace = "datastore_namespace"
)

// Backend names accepted by store_backend and nonce_backend.
const (
	BackendMemory    = "memory"
	BackendGorm      = "gorm"
	BackendRedis     = "redis"
	BackendDatastore = "datastore"
)

type StorageConfig interface {
	GetStoreBackend() string
	GetDatabaseDSN() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetKeyPrefix() string
	GetNonceBackend() string
	GetDatastoreProject() string
	GetDatastoreNamespace() string
}

type Storage struct {
	src source
}

var _ StorageConfig = Storage{}

func (s Storage) GetStoreBackend() string {
	return s.src.getString(KeyStoreBackend)
}

// GetDatabaseDSN is the sqlite dsn used by the gorm backend.
func (s Storage) GetDatabaseDSN() string {
	return s.src.getString(KeyDatabaseDSN)
}

func (s Storage) GetRedisAddr() string {
	return s.src.getString(KeyRedisAddr)
}

func (s Storage) GetRedisPassword() string {
	return s.src.getString(KeyRedisPassword)
}

func (s Storage) GetRedisDB() int {
	return s.src.getInt(KeyRedisDB)
}

// GetKeyPrefix namespaces redis keys.
func (s Storage) GetKeyPrefix() string {
	return s.src.getString(KeyKeyPrefix)
}

func (s Storage) GetNonceBackend() string {
	return s.src.getString(KeyNonceBackend)
}

func (s Storage) GetDatastoreProject() string {
	return s.src.getString(KeyDatastoreProject)
}

func (s Storage) GetDatastoreNamespace() string {
	return s.src.getString(KeyDatastoreNamespace)
}
