package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed stores over one bun handle so the
// wiring code deals with a single constructor.
type RepositoryFactory struct {
	db *bun.DB

	requestStore      *RequestStore
	senderStore       *SenderStore
	reportSourceStore *ReportSourceStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.requestStore != nil && f.senderStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) RequestStore() *RequestStore {
	if f == nil {
		return nil
	}
	return f.requestStore
}

func (f *RepositoryFactory) SenderStore() *SenderStore {
	if f == nil {
		return nil
	}
	return f.senderStore
}

func (f *RepositoryFactory) ReportSourceStore() *ReportSourceStore {
	if f == nil {
		return nil
	}
	return f.reportSourceStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	requestStore, err := NewRequestStore(f.db)
	if err != nil {
		return err
	}
	senderStore, err := NewSenderStore(f.db)
	if err != nil {
		return err
	}
	reportSourceStore, err := NewReportSourceStore(f.db)
	if err != nil {
		return err
	}
	f.requestStore = requestStore
	f.senderStore = senderStore
	f.reportSourceStore = reportSourceStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
