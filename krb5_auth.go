/*
MIT License

Copyright (c) 2026 netssh contributors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package netssh

import (
	"fmt"

	"github.com/netssh/netssh/internal/krb5"
	"golang.org/x/crypto/ssh"
)

// krb5NewClient picks the constructor matching whichever credential field
// is populated: keytab first, then an existing credential cache, then a
// plain password.
func krb5NewClient(creds *KerberosCredentials) (ssh.GSSAPIClient, error) {
	switch {
	case creds.KeytabPath != "":
		return krb5.NewClientWithKeytab(creds.Username, creds.Krb5ConfPath, creds.KeytabPath)
	case creds.CCachePath != "":
		return krb5.NewClientWithCCache(creds.Krb5ConfPath, creds.CCachePath)
	case creds.Password != "":
		return krb5.NewClientWithPassword(creds.Username, creds.Password, creds.Krb5ConfPath)
	default:
		return nil, fmt.Errorf("kerberos credentials require a KeytabPath, CCachePath, or Password")
	}
}
