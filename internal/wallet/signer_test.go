package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func loginTypedData(message string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Login": []apitypes.Type{
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "Login",
		Domain: apitypes.TypedDataDomain{
			Name:    "OwnaFarm",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(5003),
		},
		Message: apitypes.TypedDataMessage{"message": message},
	}
}

func TestNewLocalSignerAcceptsOptionalPrefix(t *testing.T) {
	plain, err := NewLocalSigner(testKeyHex)
	require.NoError(t, err)
	prefixed, err := NewLocalSigner("0x" + testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, plain.Address(), prefixed.Address())

	_, err = NewLocalSigner("not-a-key")
	require.Error(t, err)
}

func TestSignTypedDataRecoversToSignerAddress(t *testing.T) {
	signer, err := NewLocalSigner(testKeyHex)
	require.NoError(t, err)

	td := loginTypedData("Login nonce n1")
	signature, err := signer.SignTypedData(td)
	require.NoError(t, err)
	require.Len(t, signature, 65)

	// Wallet-style recovery id.
	assert.Contains(t, []byte{27, 28}, signature[64])

	digest, _, err := apitypes.TypedDataAndHash(td)
	require.NoError(t, err)

	recovery := make([]byte, 65)
	copy(recovery, signature)
	recovery[64] -= 27
	pub, err := crypto.SigToPub(digest, recovery)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestSignTypedDataDiffersPerMessage(t *testing.T) {
	signer, err := NewLocalSigner(testKeyHex)
	require.NoError(t, err)

	sig1, err := signer.SignTypedData(loginTypedData("Login nonce n1"))
	require.NoError(t, err)
	sig2, err := signer.SignTypedData(loginTypedData("Login nonce n2"))
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig2)
}

func TestSignTxBindsChainID(t *testing.T) {
	signer, err := NewLocalSigner(testKeyHex)
	require.NoError(t, err)

	chainID := big.NewInt(5003)
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := signer.SignTx(tx, chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), sender)

	// Signed for one chain, not valid on another.
	_, err = types.Sender(types.LatestSignerForChainID(big.NewInt(1)), signed)
	require.Error(t, err)
}
