// Package browser provides the page-automation capability the pipeline runs on.
//
// A Launcher starts one browsing session per run and returns a Page. Two drivers
// are available: a headless Chrome driver (chromedp) for pages that need
// JavaScript, and a lightweight HTTP driver that keeps cookies in a jar and
// emulates form submission over goquery documents.
package browser
