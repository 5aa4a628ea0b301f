// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package transport

import (
	"net/url"
	"reflect"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := map[string]URL{
		"vara:///KW1U":                       {Scheme: "vara", Target: "KW1U", Digis: []string{}, Params: url.Values{}},
		"vara:///DIGI1/KW1U":                 {Scheme: "vara", Target: "KW1U", Digis: []string{"DIGI1"}, Params: url.Values{}},
		"vara://127.0.0.1:8300/KW1U":         {Scheme: "vara", Host: "127.0.0.1:8300", Target: "KW1U", Digis: []string{}, Params: url.Values{}},
		"vara:///KW1U?host=192.168.1.10": {Scheme: "vara", Host: "192.168.1.10", Target: "KW1U", Digis: []string{}, Params: url.Values{"host": []string{"192.168.1.10"}}},

		"vara://LA5NTA@127.0.0.1:8300/KW1U": {
			Scheme: "vara",
			Host:   "127.0.0.1:8300",
			Target: "KW1U",
			User:   url.User("LA5NTA"),
			Digis:  []string{},
			Params: url.Values{},
		},
	}

	for str, expect := range tests {
		got, err := ParseURL(str)
		if err != nil {
			t.Errorf("'%s': Unexpected error (%s)", str, err)
			continue
		}

		if !reflect.DeepEqual(*got, expect) {
			t.Errorf("'%s':\n\tGot %#v\n\tExpect %#v", str, *got, expect)
		}
	}

	if _, err := ParseURL("vara:///"); err == nil {
		t.Errorf("Expected error on no target")
	}
}
