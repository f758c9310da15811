package messaging

// Topic constants for the mining daemon messaging surface
const (
	// Hardware-found solutions, one message per resolved nonce
	TopicSolutions = "asic.solutions" // asicd → submitter

	// Periodic per-chain counters
	TopicChainStats = "asic.chain_stats" // asicd → statsd

	// Periodic per-client scheduling counters
	TopicClientStats = "asic.client_stats" // asicd → statsd

	// Operator commands applied to the client group
	TopicCommands = "asic.commands" // operator → asicd
)
