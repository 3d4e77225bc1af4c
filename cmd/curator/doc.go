// Command curator processes bookmarked posts into a markdown knowledge base.
package main
