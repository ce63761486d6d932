package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "batch:7", EntityKey("7"))
	assert.Equal(t, "/api/batches/7", BatchKey("7"))
	assert.Equal(t, "/api/hotels/h1/batches", HotelBatchesKey("h1"))
	assert.Equal(t, "/api/hotels/h1/batches", CreateEndpoint("h1"))
	assert.Equal(t, "/api/batches/7/collect", CollectEndpoint("7"))
	assert.Equal(t, "/api/batches/7/write-offs", WriteOffEndpoint("7"))
}
