package composer_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permissionlessweb/bs-accounts/pkg/composer"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
	"github.com/permissionlessweb/bs-accounts/pkg/wasmbind"
)

func account(t *testing.T) *composer.Composer {
	t.Helper()
	c, err := schema.Load("Bs721Account", filepath.Join("..", "schema", "testdata", "account"))
	require.NoError(t, err)
	return composer.New(c, "sender1", "contract1")
}

func params(t *testing.T, s string) *composer.Params {
	t.Helper()
	p, err := composer.ParseParams([]byte(s))
	require.NoError(t, err)
	return p
}

// TestExecute_TransferNft is the canonical scenario: camelCase method and
// keys in, snake_case wire payload out, no funds.
func TestExecute_TransferNft(t *testing.T) {
	env, err := account(t).Execute("transferNft", params(t, `{"tokenId":"7","recipient":"addr1"}`), nil)
	require.NoError(t, err)

	assert.Equal(t, wasmbind.ExecuteTypeURL, env.TypeURL)
	assert.Equal(t, "sender1", env.Value.Sender)
	assert.Equal(t, "contract1", env.Value.Contract)
	// Declared order, not input order.
	assert.Equal(t, `{"transfer_nft":{"recipient":"addr1","token_id":"7"}}`, string(env.Value.Msg))

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"funds":[]`)
}

func TestExecute_MethodForms(t *testing.T) {
	c := account(t)
	for _, method := range []string{"transfer_nft", "transferNft", "TransferNFT"} {
		env, err := c.Execute(method, params(t, `{"recipient":"a","token_id":"1"}`), nil)
		require.NoError(t, err, method)
		assert.Contains(t, string(env.Value.Msg), `"transfer_nft"`)
	}
}

func TestExecute_OptionalFields(t *testing.T) {
	c := account(t)

	env, err := c.Execute("approve", params(t, `{"spender":"s","tokenId":"1"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"approve":{"spender":"s","token_id":"1"}}`, string(env.Value.Msg))

	env, err = c.Execute("approve", params(t, `{"spender":"s","tokenId":"1","expires":null}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"approve":{"spender":"s","token_id":"1","expires":null}}`, string(env.Value.Msg))

	env, err = c.Execute("approve", params(t, `{"expires":{"at_height":10},"spender":"s","tokenId":"1"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"approve":{"spender":"s","token_id":"1","expires":{"at_height":10}}}`, string(env.Value.Msg))
}

func TestExecute_NoFields(t *testing.T) {
	funds := []wasmbind.Coin{wasmbind.NewCoin("10", "ubtsg")}
	env, err := account(t).Execute("freezeCollectionInfo", nil, funds)
	require.NoError(t, err)
	assert.Equal(t, `{"freeze_collection_info":{}}`, string(env.Value.Msg))
	assert.Equal(t, funds, env.Value.Funds)
}

func TestExecute_Errors(t *testing.T) {
	c := account(t)
	tests := []struct {
		name   string
		method string
		params string
		err    error
	}{
		{name: "unknown method", method: "burn", params: `{}`, err: composer.ErrUnknownMethod},
		{name: "unknown field", method: "transferNft", params: `{"recipient":"a","tokenId":"1","memo":"x"}`, err: composer.ErrUnknownField},
		{name: "missing field", method: "transferNft", params: `{"recipient":"a"}`, err: composer.ErrMissingField},
		{name: "wrong type", method: "transferNft", params: `{"recipient":"a","tokenId":7}`, err: composer.ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Execute(tt.method, params(t, tt.params), nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := c.Execute("transferNft", params(t, `{"recipient":"a","tokenId":"1","token_id":"2"}`), nil)
	assert.ErrorContains(t, err, "both set field token_id")
}

func TestQuery(t *testing.T) {
	c := account(t)

	q, err := c.Query("ownerOf", params(t, `{"tokenId":"7","includeExpired":true}`))
	require.NoError(t, err)
	assert.Equal(t, "contract1", q.Contract)
	assert.Equal(t, `{"owner_of":{"token_id":"7","include_expired":true}}`, string(q.Msg))

	q, err = c.Query("numTokens", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"num_tokens":{}}`, string(q.Msg))
}

func TestPayload_Record(t *testing.T) {
	payload, err := account(t).Payload(schema.KindInstantiate, "", params(t, `{"symbol":"BSA","name":"accounts","minter":"m"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"accounts","symbol":"BSA","minter":"m"}`, string(payload))

	_, err = account(t).Payload(schema.KindMigrate, "", nil)
	assert.ErrorIs(t, err, composer.ErrNoMessage)
}

func TestParseParams(t *testing.T) {
	p, err := composer.ParseParams(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())

	p, err = composer.ParseParams([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, "b", p.Oldest().Key)

	_, err = composer.ParseParams([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestMethods(t *testing.T) {
	c, err := schema.Load("Bs721Account", filepath.Join("..", "schema", "testdata", "account"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ownerOf", "numTokens", "minter"}, composer.Methods(c.Message(schema.KindQuery)))
}

func TestExecute_DigitLedKeys(t *testing.T) {
	doc := `{"idl_version":"1.0.0","execute":{"$schema":"http://json-schema.org/draft-07/schema#","title":"ExecuteMsg","oneOf":[
	  {"type":"object","required":["set_fee"],"properties":{"set_fee":{"type":"object","required":["level_2_fee","token_1"],
	    "properties":{"level_2_fee":{"type":"string"},"token_1":{"type":"string"}},"additionalProperties":false}},"additionalProperties":false}]}}`
	src, err := schema.ParseIDL("Fees", []byte(doc))
	require.NoError(t, err)
	c, err := schema.Ingest(src)
	require.NoError(t, err)

	env, err := composer.New(c, "sender1", "contract1").Execute("setFee", params(t, `{"level_2Fee":"5","token_1":"t"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"set_fee":{"level_2_fee":"5","token_1":"t"}}`, string(env.Value.Msg))
}
