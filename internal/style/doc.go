// Package style compiles the project's stylesheets into one extracted CSS
// file. Plain CSS passes through; SCSS/Sass and LESS are handed to their
// external compilers. Every url() reference is routed through the asset
// router and rewritten relative to the emitted stylesheet, an optional
// postprocess step lowers syntax for the configured browser targets, and
// production builds are minified and content-hash named.
package style
