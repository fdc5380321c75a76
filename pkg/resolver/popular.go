package resolver

// popularPackages seeds search candidate generation. Names are in canonical
// normalized form, roughly ordered by download rank.
var popularPackages = []string{
	"boto3",
	"urllib3",
	"requests",
	"certifi",
	"charset-normalizer",
	"idna",
	"setuptools",
	"typing-extensions",
	"python-dateutil",
	"six",
	"packaging",
	"botocore",
	"s3transfer",
	"numpy",
	"pip",
	"wheel",
	"pyyaml",
	"cryptography",
	"pandas",
	"click",
	"attrs",
	"jinja2",
	"markupsafe",
	"pytz",
	"platformdirs",
	"jsonschema",
	"rsa",
	"pyasn1",
	"protobuf",
	"importlib-metadata",
	"zipp",
	"colorama",
	"pydantic",
	"aiohttp",
	"scipy",
	"pytest",
	"flask",
	"django",
	"fastapi",
	"sqlalchemy",
	"werkzeug",
	"httpx",
	"pillow",
	"matplotlib",
	"scikit-learn",
	"tqdm",
	"rich",
	"openpyxl",
	"lxml",
	"beautifulsoup4",
	"greenlet",
	"psycopg2-binary",
	"pymongo",
	"redis",
	"celery",
	"gunicorn",
	"uvicorn",
	"starlette",
	"anyio",
	"sniffio",
	"h11",
	"websockets",
	"tornado",
	"itsdangerous",
	"blinker",
	"tabulate",
	"toml",
	"tomli",
	"filelock",
	"virtualenv",
	"distlib",
	"pluggy",
	"iniconfig",
	"coverage",
	"mypy",
	"black",
	"isort",
	"flake8",
	"pylint",
	"tenacity",
	"cachetools",
	"google-api-core",
	"grpcio",
	"pyarrow",
	"orjson",
	"msgpack",
	"paramiko",
	"docker",
	"kubernetes",
	"alembic",
	"marshmallow",
}
