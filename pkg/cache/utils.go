package cache

// GenerateKey joins a namespace and an id into one key.
func GenerateKey(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + ":" + id
}
