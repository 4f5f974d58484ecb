package steps

import "provisor/internal/config"

// vhostData feeds the two virtual host templates.
func vhostData(cfg config.Config) map[string]string {
	return map[string]string{
		"Domain":   cfg.Domain,
		"DocRoot":  cfg.InstallDir,
		"CertPath": cfg.CertPath(),
		"KeyPath":  cfg.KeyPath(),
	}
}

// dbData feeds the application database config template.
func dbData(cfg config.Config) map[string]string {
	return map[string]string{
		"DBName":     cfg.DBName,
		"DBUser":     cfg.DBUser,
		"DBPassword": cfg.DBPassword,
	}
}

const httpVHost = `<VirtualHost *:80>
    ServerName {{.Domain}}
    DocumentRoot {{.DocRoot}}

    <Directory {{.DocRoot}}>
        Options FollowSymLinks
        AllowOverride All
        Require all granted
    </Directory>

    ErrorLog ${APACHE_LOG_DIR}/{{.Domain}}-error.log
    CustomLog ${APACHE_LOG_DIR}/{{.Domain}}-access.log combined
</VirtualHost>
`

const httpsVHost = `<VirtualHost *:443>
    ServerName {{.Domain}}
    DocumentRoot {{.DocRoot}}

    SSLEngine on
    SSLCertificateFile {{.CertPath}}
    SSLCertificateKeyFile {{.KeyPath}}

    <Directory {{.DocRoot}}>
        Options FollowSymLinks
        AllowOverride All
        Require all granted
    </Directory>

    ErrorLog ${APACHE_LOG_DIR}/{{.Domain}}-ssl-error.log
    CustomLog ${APACHE_LOG_DIR}/{{.Domain}}-ssl-access.log combined
</VirtualHost>
`

const appConfig = `<?php
return [
    'dbhost' => 'localhost',
    'dbname' => '{{.DBName}}',
    'dbuser' => '{{.DBUser}}',
    'dbpassword' => '{{.DBPassword}}',
];
`
