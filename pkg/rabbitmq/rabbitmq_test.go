package rabbitmq_test

import (
	"encoding/json"
	"testing"

	"storefront/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	body, err := rabbitmq.EncodeEvent("order.placed", map[string]string{"orderCode": "123"})
	require.NoError(t, err)

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "order.placed", env.Type)
	assert.Equal(t, "123", env.Data["orderCode"])
}

func TestEncodeEvent_Unmarshalable(t *testing.T) {
	_, err := rabbitmq.EncodeEvent("bad", make(chan int))
	assert.Error(t, err)
}

func TestPublishWithoutChannel(t *testing.T) {
	c := &rabbitmq.Client{}
	assert.Error(t, c.Publish(rabbitmq.Exchange, "cart.updated", []byte(`{}`)))
}
