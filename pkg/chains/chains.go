package chains

import "strings"

// supportedChains is the list of supported testnet chain IDs
var supportedChains = []int{
	11155111, // Ethereum Sepolia
	421614,   // Arbitrum Sepolia
	84532,    // Base Sepolia
	11155420, // Optimism Sepolia
	80002,    // Polygon Amoy
}

// ChainList returns the supported chain IDs. Callers get a copy; the
// canonical list is never handed out for mutation.
func ChainList() []int {
	out := make([]int, len(supportedChains))
	copy(out, supportedChains)
	return out
}

// DefaultSettlementChainID is the chain payouts settle on
const DefaultSettlementChainID = 84532

// chainNames maps chain IDs to their names
var chainNames = map[int]string{
	11155111: "SEPOLIA",
	421614:   "ARBITRUM_SEPOLIA",
	84532:    "BASE_SEPOLIA",
	11155420: "OPTIMISM_SEPOLIA",
	80002:    "POLYGON_AMOY",
}

// nativeSymbols maps chain IDs to the native asset symbol
var nativeSymbols = map[int]string{
	11155111: "ETH",
	421614:   "ETH",
	84532:    "ETH",
	11155420: "ETH",
	80002:    "POL",
}

// usdcAddresses maps chain IDs to USDC contract addresses
var usdcAddresses = map[int]string{
	11155111: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
	421614:   "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
	84532:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	11155420: "0x5fd84259d66Cd46123540766Be93DFE6D43130D7",
	80002:    "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
}

// tokenDecimals maps token symbols to their decimal counts
var tokenDecimals = map[string]int{
	"USDC": 6,
	"ETH":  18,
	"POL":  18,
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// GetNativeSymbol returns the native asset symbol for a given chain ID
func GetNativeSymbol(chainID int) string {
	symbol, exists := nativeSymbols[chainID]
	if !exists {
		return ""
	}
	return symbol
}

// GetUSDCAddress returns the USDC contract address for a given chain ID
func GetUSDCAddress(chainID int) string {
	address, exists := usdcAddresses[chainID]
	if !exists {
		return ""
	}
	return address
}

// GetTokenDecimals returns the decimal count for a token symbol, defaulting to 18
func GetTokenDecimals(symbol string) int {
	decimals, exists := tokenDecimals[strings.ToUpper(symbol)]
	if !exists {
		return 18
	}
	return decimals
}

// IsNativeToken reports whether the symbol is the native asset on the given chain
func IsNativeToken(symbol string, chainID int) bool {
	return strings.EqualFold(symbol, GetNativeSymbol(chainID))
}

// GetTokenSymbol returns the token symbol for a contract address on any supported
// chain, or an empty string if the address is not recognized
func GetTokenSymbol(address string) string {
	address = strings.ToLower(address)

	for _, usdcAddress := range usdcAddresses {
		if strings.ToLower(usdcAddress) == address {
			return "USDC"
		}
	}

	return ""
}
