// Package rooms implements file rooms: owners publish a text template,
// members join with one of their forms, and the filled text is stored
// sealed until the owner reads it inside the member's access window.
//
// Rooms live in the fileRooms collection and joins in userAccess. Both keep
// their personal content in encryptedData; only ownership, membership and
// window bounds stay in plaintext so they can be queried.
package rooms
