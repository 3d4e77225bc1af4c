// Package interpret holds the model-driven phase functions: media
// description and categorization.
package interpret
