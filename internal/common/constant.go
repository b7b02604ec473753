// Package common contains shared constants and sentinel errors used across
// authd components.
package common

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on inbound requests.
const AccessTokenHeaderName = "Authorization"
