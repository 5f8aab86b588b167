package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassID(t *testing.T) {
	t.Parallel()

	t.Run("WithPackage", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "com.acme.billing.InvoiceService", ClassID("com.acme.billing", "InvoiceService"))
	})

	t.Run("DefaultPackage", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "InvoiceService", ClassID("", "InvoiceService"))
	})
}

func TestMethodID(t *testing.T) {
	t.Parallel()

	classID := ClassID("com.acme", "OwnerController")
	assert.Equal(t, "com.acme.OwnerController.findOwner", MethodID(classID, "findOwner"))
}

func TestEndpointID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "GET /owners/{id}", EndpointID("GET", "/owners/{id}"))
	assert.Equal(t, "POST /owners", EndpointID("POST", "/owners"))
}
