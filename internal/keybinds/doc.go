/*
Package keybinds provides customizable keyboard binding management.

# Overview

Keys are matched to actions within a context. Each TUI focus state maps to
one context (tab bar, peer table, method list, detail pane, popups, text
inputs). A key not bound in the specific context falls back to the global
context, which holds ctrl+c and esc.

# Multi-key sequences

"g" is registered as ActionGoToTopPrepare in list contexts; MatchMultiKey
holds it as pending and resolves "gg" on the next key.

# Configuration File Format

~/.bitcoin-tui/keybinds.json overrides defaults per context. Keys may be
comma separated; an empty action unbinds the key:

	{
	  "version": "1.0",
	  "tabbar": {
	    "n,right": "next_tab",
	    "l": ""
	  },
	  "peers": {
	    "f": "open_query"
	  }
	}

ctrl+c and esc are reserved: a config that rebinds them is rejected.
*/
package keybinds
