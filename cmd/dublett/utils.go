package main

import "net/url"

func setIfNotEmpty(query url.Values, key, value string) {
	if value == "" {
		return
	}
	query.Set(key, value)
}
