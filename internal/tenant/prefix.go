package tenant

// PrefixKey namespaces a cache or lock key per tenant id.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return "tenant:" + tenantID + ":" + key
}
