package naming_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
)

func TestCamel(t *testing.T) {
	cases := map[string]string{
		"token_id":               "tokenId",
		"transfer_nft":           "transferNft",
		"recipient":              "recipient",
		"update_collection_info": "updateCollectionInfo",
		"v1_beta":                "v1Beta",
		"token_1":                "token_1",
		"level_2_fee":            "level_2Fee",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, naming.Camel(in), "Camel(%q)", in)
	}
}

func TestSnake(t *testing.T) {
	cases := map[string]string{
		"tokenId":              "token_id",
		"transferNft":          "transfer_nft",
		"recipient":            "recipient",
		"token_id":             "token_id",
		"updateCollectionInfo": "update_collection_info",
		"v1Beta":               "v1_beta",
		"token_1":              "token_1",
		"level_2Fee":           "level_2_fee",
	}
	for in, want := range cases {
		assert.Equal(t, want, naming.Snake(in), "Snake(%q)", in)
	}
}

func TestExported(t *testing.T) {
	cases := map[string]string{
		"token_id":             "TokenID",
		"transfer_nft":         "TransferNFT",
		"MintMsg_for_Metadata": "MintMsgForMetadata",
		"Array_of_Addr":        "ArrayOfAddr",
		"Cw721ReceiveMsg":      "Cw721ReceiveMsg",
		"uint128":              "Uint128",
		"owner_of":             "OwnerOf",
		"":                     "X",
	}
	for in, want := range cases {
		assert.Equal(t, want, naming.Exported(in), "Exported(%q)", in)
	}
}

func TestPackage(t *testing.T) {
	assert.Equal(t, "accountminter", naming.Package("AccountMinter"))
	assert.Equal(t, "bs721account", naming.Package("Bs721-Account"))
	assert.Equal(t, "c721", naming.Package("721"))
	assert.Equal(t, "", naming.Package("--"))
}

func TestIsSnake(t *testing.T) {
	for _, ok := range []string{"transfer_nft", "a", "v1_beta", "mint2"} {
		assert.True(t, naming.IsSnake(ok), ok)
	}
	for _, bad := range []string{"", "TransferNft", "_a", "a_", "a__b", "1a", "a-b"} {
		assert.False(t, naming.IsSnake(bad), bad)
	}
}

// TestCamelSnakeRoundTrip verifies that converting a wire name to the
// parameter convention and back yields the original wire name, so distinct
// wire names never collide after conversion.
func TestCamelSnakeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	segment := gen.RegexMatch(`[a-z0-9][a-z0-9]{0,7}`)

	properties.Property("Snake(Camel(wire)) == wire", prop.ForAll(
		func(segments []string) bool {
			if len(segments) == 0 {
				return true
			}
			wire := strings.Join(segments, "_")
			return naming.Snake(naming.Camel(wire)) == wire
		},
		gen.SliceOfN(4, segment),
	))

	properties.Property("distinct wire names stay distinct", prop.ForAll(
		func(a, b []string) bool {
			wa, wb := strings.Join(a, "_"), strings.Join(b, "_")
			if wa == wb {
				return true
			}
			return naming.Camel(wa) != naming.Camel(wb)
		},
		gen.SliceOfN(3, segment),
		gen.SliceOfN(3, segment),
	))

	properties.TestingRun(t)
}
