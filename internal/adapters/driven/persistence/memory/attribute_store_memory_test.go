package memory

import (
	"testing"

	"user-record-service/internal/adapters/driven/persistence/storetest"
	"user-record-service/internal/core/ports/driven"
)

func TestAttributeStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) driven.AttributeStore {
		return NewAttributeStore()
	})
}
