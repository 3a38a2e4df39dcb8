// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package session keeps the sign-in's cross-request state in a gorilla
sessions.Store: the flow state of a sign-in in progress, the post-login path,
the Microsoft access token, the logged in user and flash messages.

Sessions live in a signed cookie (NewCookieStore) or in redis (RedisStore),
in which case the cookie only carries the session ID.
*/
package session
