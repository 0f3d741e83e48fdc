// Package tgui holds small Telegram UI helpers: HTML-safe text, inline
// keyboard building, callback data packing and pagination math.
//
// Nothing here talks to the network; the adapter owns delivery.
package tgui
