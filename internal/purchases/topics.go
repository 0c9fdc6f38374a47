package purchases

const (
	TopicOwnerAlerts = "storefront.owner.alerts"
)

// Partition key = correlation key so alerts for one purchase stay ordered.
func PartitionKey(correlationKey string) []byte { return []byte(correlationKey) }
